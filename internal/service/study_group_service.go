package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
)

// ── 学习小组业务错误 ──

var (
	ErrGroupNotFound          = errors.New("学习小组不存在")
	ErrNotGroupMember         = errors.New("你不是该小组成员")
	ErrNotGroupCreator        = errors.New("只有小组创建者可以执行此操作")
	ErrSoleCreatorCannotLeave = errors.New("你是唯一的创建者，请先转让小组再退出")
	ErrTransferTargetInvalid  = errors.New("只能转让给小组中的其他成员")
)

// StudyGroupService 学习小组业务接口
type StudyGroupService interface {
	Create(ctx context.Context, me string, req *dto.CreateStudyGroupRequest) (*dto.StudyGroupResponse, error)
	Get(ctx context.Context, me, groupID string) (*dto.StudyGroupResponse, error)
	Join(ctx context.Context, me, groupID string) (*dto.JoinGroupResponse, error)
	Leave(ctx context.Context, me, groupID string) error
	Delete(ctx context.Context, me, groupID string) error
	TransferOwnership(ctx context.Context, me, groupID string, req *dto.TransferOwnershipRequest) error
	ListMembers(ctx context.Context, groupID string) ([]dto.GroupMemberResponse, error)
	ListMine(ctx context.Context, me string) ([]dto.StudyGroupResponse, error)
	Search(ctx context.Context, me string, req *dto.StudyGroupSearchRequest) ([]dto.StudyGroupResponse, int64, error)
}

type studyGroupService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudyGroupService 创建 StudyGroupService 实例
func NewStudyGroupService(repo *repository.Repository, logger *zap.Logger) StudyGroupService {
	return &studyGroupService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *studyGroupService) Create(ctx context.Context, me string, req *dto.CreateStudyGroupRequest) (*dto.StudyGroupResponse, error) {
	group := &model.StudyGroup{
		CreatorID:   me,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	// 小组与创建者成员关系同一事务写入
	if err := s.repo.StudyGroup.CreateWithCreator(ctx, group); err != nil {
		s.logger.Error("创建学习小组失败", zap.Error(err))
		return nil, err
	}

	resp := toStudyGroupResponse(group)
	resp.MemberCount = 1
	resp.IsMember = true
	return resp, nil
}

// ────────────────────── Get ──────────────────────

func (s *studyGroupService) Get(ctx context.Context, me, groupID string) (*dto.StudyGroupResponse, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	list, err := s.decorate(ctx, me, []model.StudyGroup{*group})
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ────────────────────── Join / Leave ──────────────────────

func (s *studyGroupService) Join(ctx context.Context, me, groupID string) (*dto.JoinGroupResponse, error) {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	joined, err := s.repo.StudyGroup.AddMember(ctx, groupID, me)
	if err != nil {
		s.logger.Error("加入学习小组失败", zap.Error(err))
		return nil, err
	}
	return &dto.JoinGroupResponse{Joined: joined}, nil
}

func (s *studyGroupService) Leave(ctx context.Context, me, groupID string) error {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return err
	}
	member, err := s.getMember(ctx, groupID, me)
	if err != nil {
		return err
	}

	if member.Role == model.GroupRoleCreator {
		creators, err := s.repo.StudyGroup.CountByRole(ctx, groupID, model.GroupRoleCreator)
		if err != nil {
			s.logger.Error("统计小组创建者失败", zap.Error(err))
			return err
		}
		if creators <= 1 {
			return ErrSoleCreatorCannotLeave
		}
	}

	if _, err := s.repo.StudyGroup.RemoveMember(ctx, groupID, me); err != nil {
		s.logger.Error("退出学习小组失败", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Delete ──────────────────────

func (s *studyGroupService) Delete(ctx context.Context, me, groupID string) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	// 以小组记录上的 creator_id 为准
	if group.CreatorID != me {
		return ErrNotGroupCreator
	}
	if err := s.repo.StudyGroup.Delete(ctx, groupID); err != nil {
		s.logger.Error("删除学习小组失败", zap.Error(err))
		return err
	}
	s.logger.Info("学习小组已删除", zap.String("group_id", groupID), zap.String("by", me))
	return nil
}

// ────────────────────── TransferOwnership ──────────────────────

func (s *studyGroupService) TransferOwnership(ctx context.Context, me, groupID string, req *dto.TransferOwnershipRequest) error {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return err
	}
	member, err := s.getMember(ctx, groupID, me)
	if err != nil {
		return err
	}
	if member.Role != model.GroupRoleCreator {
		return ErrNotGroupCreator
	}
	if req.UserID == me {
		return ErrTransferTargetInvalid
	}
	if _, err := s.repo.StudyGroup.GetMember(ctx, groupID, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransferTargetInvalid
		}
		s.logger.Error("查询小组成员失败", zap.Error(err))
		return err
	}

	if err := s.repo.StudyGroup.TransferOwnership(ctx, groupID, me, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransferTargetInvalid
		}
		s.logger.Error("转让学习小组失败", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 列表 ──────────────────────

func (s *studyGroupService) ListMembers(ctx context.Context, groupID string) ([]dto.GroupMemberResponse, error) {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.repo.StudyGroup.ListMembers(ctx, groupID)
	if err != nil {
		s.logger.Error("查询小组成员失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.GroupMemberResponse, 0, len(members))
	for i := range members {
		m := &members[i]
		result = append(result, dto.GroupMemberResponse{
			User:     briefOrID(m.User, m.UserID),
			Role:     m.Role,
			JoinedAt: formatTime(m.JoinedAt),
		})
	}
	return result, nil
}

func (s *studyGroupService) ListMine(ctx context.Context, me string) ([]dto.StudyGroupResponse, error) {
	groups, err := s.repo.StudyGroup.ListByMember(ctx, me)
	if err != nil {
		s.logger.Error("查询我的小组失败", zap.Error(err))
		return nil, err
	}
	return s.decorate(ctx, me, groups)
}

func (s *studyGroupService) Search(ctx context.Context, me string, req *dto.StudyGroupSearchRequest) ([]dto.StudyGroupResponse, int64, error) {
	groups, total, err := s.repo.StudyGroup.Search(ctx, strings.TrimSpace(req.Q), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("搜索学习小组失败", zap.Error(err))
		return nil, 0, err
	}
	list, err := s.decorate(ctx, me, groups)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ── 辅助函数 ──

func (s *studyGroupService) getGroup(ctx context.Context, groupID string) (*model.StudyGroup, error) {
	group, err := s.repo.StudyGroup.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		s.logger.Error("查询学习小组失败", zap.Error(err))
		return nil, err
	}
	return group, nil
}

func (s *studyGroupService) getMember(ctx context.Context, groupID, userID string) (*model.GroupMember, error) {
	member, err := s.repo.StudyGroup.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotGroupMember
		}
		s.logger.Error("查询小组成员失败", zap.Error(err))
		return nil, err
	}
	return member, nil
}

// decorate 批量补充成员数与 is_member
func (s *studyGroupService) decorate(ctx context.Context, me string, groups []model.StudyGroup) ([]dto.StudyGroupResponse, error) {
	ids := make([]string, len(groups))
	for i := range groups {
		ids[i] = groups[i].GroupID
	}
	counts, err := s.repo.StudyGroup.CountMembers(ctx, ids)
	if err != nil {
		s.logger.Error("统计小组成员失败", zap.Error(err))
		return nil, err
	}
	memberOf, err := s.repo.StudyGroup.MemberOf(ctx, me, ids)
	if err != nil {
		s.logger.Error("查询小组成员关系失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.StudyGroupResponse, 0, len(groups))
	for i := range groups {
		resp := toStudyGroupResponse(&groups[i])
		resp.MemberCount = counts[groups[i].GroupID]
		resp.IsMember = memberOf[groups[i].GroupID]
		result = append(result, *resp)
	}
	return result, nil
}

func toStudyGroupResponse(g *model.StudyGroup) *dto.StudyGroupResponse {
	return &dto.StudyGroupResponse{
		ID:          g.GroupID,
		Name:        g.Name,
		Description: g.Description,
		Creator:     toUserBrief(g.Creator),
		CreatorID:   g.CreatorID,
		CreatedAt:   formatTime(g.CreatedAt),
	}
}
