package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
)

// ── 管理后台业务错误 ──

var (
	ErrFeedbackNotFound   = errors.New("反馈不存在")
	ErrBugNotFound        = errors.New("缺陷报告不存在")
	ErrInvalidStatus      = errors.New("无效的状态值")
	ErrInvalidTransition  = errors.New("不允许的状态流转")
	ErrStatusConflict     = errors.New("状态已被其他管理员修改，请刷新后重试")
	ErrUserSelfRoleChange = errors.New("不能修改自己的角色")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

const exportMaxRows = 10000

// AdminService 管理后台业务接口
type AdminService interface {
	ListFeedback(ctx context.Context, req *dto.FeedbackListRequest) ([]dto.FeedbackResponse, int64, error)
	UpdateFeedbackStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest) (*dto.FeedbackResponse, error)
	ListBugs(ctx context.Context, req *dto.BugListRequest) ([]dto.BugReportResponse, int64, error)
	UpdateBugStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest) (*dto.BugReportResponse, error)
	Summary(ctx context.Context) (*dto.AdminSummaryResponse, error)
	ListUsers(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	AssignRole(ctx context.Context, callerID, userID string, req *dto.AssignRoleRequest) (*dto.UserResponse, error)
	// ExportFeedback / ExportBugs 返回 xlsx 内容与建议文件名
	ExportFeedback(ctx context.Context, req *dto.FeedbackListRequest) (*bytes.Buffer, string, error)
	ExportBugs(ctx context.Context, req *dto.BugListRequest) (*bytes.Buffer, string, error)
}

type adminService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(repo *repository.Repository, logger *zap.Logger) AdminService {
	return &adminService{repo: repo, logger: logger}
}

// ────────────────────── 反馈 ──────────────────────

func (s *adminService) ListFeedback(ctx context.Context, req *dto.FeedbackListRequest) ([]dto.FeedbackResponse, int64, error) {
	items, total, err := s.repo.Feedback.ListFeedback(ctx, feedbackFilter(req), req.Offset, req.GetLimit())
	if err != nil {
		s.logger.Error("查询反馈列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.FeedbackResponse, 0, len(items))
	for i := range items {
		result = append(result, *toFeedbackResponse(&items[i]))
	}
	return result, total, nil
}

func (s *adminService) UpdateFeedbackStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest) (*dto.FeedbackResponse, error) {
	if !feedbackTransitions.Known(req.Status) {
		return nil, ErrInvalidStatus
	}
	item, err := s.repo.Feedback.GetFeedback(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		s.logger.Error("查询反馈失败", zap.Error(err))
		return nil, err
	}
	if !feedbackTransitions.Allows(item.Status, req.Status) {
		return nil, ErrInvalidTransition
	}

	rows, err := s.repo.Feedback.UpdateFeedbackStatus(ctx, id, item.Status, req.Status, req.AdminNotes)
	if err != nil {
		s.logger.Error("更新反馈状态失败", zap.Error(err))
		return nil, err
	}
	if rows == 0 {
		return nil, ErrStatusConflict
	}

	s.logger.Info("反馈状态已更新", zap.String("id", id), zap.String("from", item.Status), zap.String("to", req.Status))
	item.Status = req.Status
	if req.AdminNotes != nil {
		item.AdminNotes = req.AdminNotes
	}
	item.UpdatedAt = time.Now().UTC()
	return toFeedbackResponse(item), nil
}

// ────────────────────── 缺陷 ──────────────────────

func (s *adminService) ListBugs(ctx context.Context, req *dto.BugListRequest) ([]dto.BugReportResponse, int64, error) {
	bugs, total, err := s.repo.Feedback.ListBugs(ctx, bugFilter(req), req.Offset, req.GetLimit())
	if err != nil {
		s.logger.Error("查询缺陷列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.BugReportResponse, 0, len(bugs))
	for i := range bugs {
		result = append(result, *toBugReportResponse(&bugs[i]))
	}
	return result, total, nil
}

func (s *adminService) UpdateBugStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest) (*dto.BugReportResponse, error) {
	if !bugTransitions.Known(req.Status) {
		return nil, ErrInvalidStatus
	}
	bug, err := s.repo.Feedback.GetBug(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBugNotFound
		}
		s.logger.Error("查询缺陷失败", zap.Error(err))
		return nil, err
	}
	if !bugTransitions.Allows(bug.Status, req.Status) {
		return nil, ErrInvalidTransition
	}

	rows, err := s.repo.Feedback.UpdateBugStatus(ctx, id, bug.Status, req.Status, req.AdminNotes)
	if err != nil {
		s.logger.Error("更新缺陷状态失败", zap.Error(err))
		return nil, err
	}
	if rows == 0 {
		return nil, ErrStatusConflict
	}

	s.logger.Info("缺陷状态已更新", zap.String("id", id), zap.String("from", bug.Status), zap.String("to", req.Status))
	bug.Status = req.Status
	if req.AdminNotes != nil {
		bug.AdminNotes = req.AdminNotes
	}
	bug.UpdatedAt = time.Now().UTC()
	return toBugReportResponse(bug), nil
}

// ────────────────────── 概览 ──────────────────────

func (s *adminService) Summary(ctx context.Context) (*dto.AdminSummaryResponse, error) {
	feedback, err := s.repo.Feedback.CountFeedbackByStatus(ctx)
	if err != nil {
		s.logger.Error("统计反馈失败", zap.Error(err))
		return nil, err
	}
	bugs, err := s.repo.Feedback.CountBugsByStatus(ctx)
	if err != nil {
		s.logger.Error("统计缺陷失败", zap.Error(err))
		return nil, err
	}
	users, err := s.repo.User.CountByRole(ctx)
	if err != nil {
		s.logger.Error("统计用户失败", zap.Error(err))
		return nil, err
	}

	return &dto.AdminSummaryResponse{
		Feedback: fillStatuses(feedback, feedbackTransitions),
		Bugs:     fillStatuses(bugs, bugTransitions),
		Users:    users,
	}, nil
}

// ────────────────────── 用户 ──────────────────────

func (s *adminService) ListUsers(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	filter := repository.UserFilter{Role: req.Role, Q: strings.TrimSpace(req.Keyword)}
	users, total, err := s.repo.User.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}
	return result, total, nil
}

func (s *adminService) AssignRole(ctx context.Context, callerID, userID string, req *dto.AssignRoleRequest) (*dto.UserResponse, error) {
	if callerID == userID {
		return nil, ErrUserSelfRoleChange
	}

	// 学生角色必须同时指定院系，其它角色删除学生档案
	var profile *model.StudentProfile
	if req.Role == model.RoleStudent {
		code := strings.ToUpper(strings.TrimSpace(req.DepartmentCode))
		if code == "" {
			return nil, ErrDepartmentRequired
		}
		dept, err := s.repo.Department.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			s.logger.Error("查询院系失败", zap.Error(err))
			return nil, err
		}
		if !dept.IsActive {
			return nil, ErrDepartmentInactive
		}
		profile = &model.StudentProfile{DepartmentID: dept.DepartmentID}
	}

	if err := s.repo.User.UpdateRole(ctx, userID, req.Role, profile); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("修改用户角色失败", zap.Error(err))
		return nil, err
	}
	s.logger.Info("用户角色已修改", zap.String("user_id", userID), zap.String("role", req.Role), zap.String("by", callerID))

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

// ────────────────────── 导出 ──────────────────────

func (s *adminService) ExportFeedback(ctx context.Context, req *dto.FeedbackListRequest) (*bytes.Buffer, string, error) {
	items, _, err := s.repo.Feedback.ListFeedback(ctx, feedbackFilter(req), 0, exportMaxRows)
	if err != nil {
		s.logger.Error("查询反馈列表失败", zap.Error(err))
		return nil, "", err
	}

	header := []string{"ID", "提交人", "分类", "主题", "内容", "评分", "状态", "管理员备注", "提交时间"}
	rows := make([][]interface{}, 0, len(items))
	for _, f := range items {
		rating := ""
		if f.Rating != nil {
			rating = fmt.Sprint(*f.Rating)
		}
		rows = append(rows, []interface{}{
			f.FeedbackID, reporterName(f.Reporter), f.Category, f.Subject, f.Message,
			rating, f.Status, deref(f.AdminNotes), formatTime(f.CreatedAt),
		})
	}

	buf, err := s.writeSheet("反馈", header, rows)
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("feedback_%s.xlsx", time.Now().Format("20060102")), nil
}

func (s *adminService) ExportBugs(ctx context.Context, req *dto.BugListRequest) (*bytes.Buffer, string, error) {
	bugs, _, err := s.repo.Feedback.ListBugs(ctx, bugFilter(req), 0, exportMaxRows)
	if err != nil {
		s.logger.Error("查询缺陷列表失败", zap.Error(err))
		return nil, "", err
	}

	header := []string{"ID", "提交人", "标题", "描述", "复现步骤", "严重程度", "优先级", "状态", "管理员备注", "提交时间"}
	rows := make([][]interface{}, 0, len(bugs))
	for _, b := range bugs {
		rows = append(rows, []interface{}{
			b.BugID, reporterName(b.Reporter), b.Title, b.Description, deref(b.Steps),
			b.Severity, b.Priority, b.Status, deref(b.AdminNotes), formatTime(b.CreatedAt),
		})
	}

	buf, err := s.writeSheet("缺陷", header, rows)
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("bugs_%s.xlsx", time.Now().Format("20060102")), nil
}

// writeSheet 生成单 Sheet 的 xlsx：首行表头加粗并冻结
func (s *adminService) writeSheet(sheetName string, header []string, rows [][]interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range header {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, c, h)
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	f.SetCellStyle(sheetName, "A1", last, headerStyle)
	f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for r, row := range rows {
		start, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheetName, start, &row); err != nil {
			s.logger.Error("写入 Excel 行失败", zap.Error(err))
			return nil, ErrExportGenerateFail
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return buf, nil
}

// ── 辅助函数 ──

func feedbackFilter(req *dto.FeedbackListRequest) repository.FeedbackFilter {
	return repository.FeedbackFilter{Status: req.Status, Category: req.Category, Q: strings.TrimSpace(req.Q)}
}

func bugFilter(req *dto.BugListRequest) repository.BugFilter {
	return repository.BugFilter{Status: req.Status, Severity: req.Severity, Priority: req.Priority, Q: strings.TrimSpace(req.Q)}
}

// fillStatuses 没有记录的状态补 0
func fillStatuses(counts map[string]int64, table transitionTable) map[string]int64 {
	out := make(map[string]int64, len(table))
	for status := range table {
		out[status] = counts[status]
	}
	return out
}

func reporterName(u *model.User) string {
	if u == nil {
		return "匿名"
	}
	return u.Name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
