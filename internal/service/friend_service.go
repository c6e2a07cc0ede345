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
	"campusconnect/backend/pkg/pubsub"
)

// ── 好友模块业务错误 ──

var (
	ErrFriendSelf                  = errors.New("不能添加自己为好友")
	ErrFriendNotStudent            = errors.New("仅学生之间可以成为好友")
	ErrFriendRequestReversePending = errors.New("对方已向你发送好友请求，请直接处理")
	ErrAlreadyFriends              = errors.New("你们已经是好友")
	ErrFriendRespondTarget         = errors.New("requester_id 与 recipient_id 必须且只能提供一个")
	ErrCannotAcceptOwnRequest      = errors.New("不能接受自己发出的好友请求")
	ErrFriendRequestNotFound       = errors.New("好友请求不存在")
	ErrFriendshipNotFound          = errors.New("好友关系不存在")
)

// 实时事件类型
const (
	EventNotificationCreated = "notification.created"
)

const friendSearchLimit = 20

// FriendService 好友业务接口
type FriendService interface {
	SendRequest(ctx context.Context, me string, req *dto.SendFriendRequest) error
	Respond(ctx context.Context, me string, req *dto.RespondFriendRequest) error
	ListAccepted(ctx context.Context, me string) ([]dto.FriendResponse, error)
	ListPending(ctx context.Context, me string) (*dto.PendingFriendsResponse, error)
	Remove(ctx context.Context, me, other string) error
	Search(ctx context.Context, me, q string) ([]dto.FriendSearchResult, error)
}

type friendService struct {
	repo      *repository.Repository
	publisher pubsub.Publisher
	logger    *zap.Logger
}

// NewFriendService 创建 FriendService 实例
func NewFriendService(repo *repository.Repository, publisher pubsub.Publisher, logger *zap.Logger) FriendService {
	return &friendService{repo: repo, publisher: publisher, logger: logger}
}

// ────────────────────── SendRequest ──────────────────────

func (s *friendService) SendRequest(ctx context.Context, me string, req *dto.SendFriendRequest) error {
	target := req.TargetID
	if target == me {
		return ErrFriendSelf
	}

	// 1. 双方必须都是学生
	users, err := s.repo.User.GetByIDs(ctx, []string{me, target})
	if err != nil {
		s.logger.Error("查询用户失败", zap.Error(err))
		return err
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].UserID] = &users[i]
	}
	if byID[target] == nil {
		return ErrUserNotFound
	}
	if byID[me] == nil || !byID[me].IsStudent() || !byID[target].IsStudent() {
		return ErrFriendNotStudent
	}

	// 2. 已有关系检查
	edges, err := s.repo.Friend.Between(ctx, me, target)
	if err != nil {
		s.logger.Error("查询好友关系失败", zap.Error(err))
		return err
	}
	for _, e := range edges {
		if e.Status == model.FriendStatusAccepted {
			return ErrAlreadyFriends
		}
		if e.RequesterID == target && e.Status == model.FriendStatusPending {
			return ErrFriendRequestReversePending
		}
	}

	// 3. 写入请求 + 通知（同一事务）
	n, err := s.repo.Friend.SendRequest(ctx, me, target)
	if err != nil {
		s.logger.Error("发送好友请求失败", zap.String("from", me), zap.String("to", target), zap.Error(err))
		return err
	}
	if n != nil {
		n.Actor = byID[me]
		publishEvent(ctx, s.publisher, s.logger, pubsub.UserChannel(target), EventNotificationCreated, toNotificationResponse(n))
	}
	return nil
}

// ────────────────────── Respond ──────────────────────

func (s *friendService) Respond(ctx context.Context, me string, req *dto.RespondFriendRequest) error {
	incoming := req.RequesterID != ""
	outgoing := req.RecipientID != ""
	if incoming == outgoing {
		return ErrFriendRespondTarget
	}

	// 撤回自己发出的请求：只能拒绝
	if outgoing {
		if req.Action == dto.FriendActionAccept {
			return ErrCannotAcceptOwnRequest
		}
		return s.deletePending(ctx, me, req.RecipientID)
	}

	if req.Action == dto.FriendActionDecline {
		return s.deletePending(ctx, req.RequesterID, me)
	}

	n, err := s.repo.Friend.Accept(ctx, req.RequesterID, me)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFriendRequestNotFound
		}
		s.logger.Error("接受好友请求失败", zap.Error(err))
		return err
	}
	if n != nil {
		if actor, err := s.repo.User.GetByID(ctx, me); err == nil {
			n.Actor = actor
		}
		publishEvent(ctx, s.publisher, s.logger, pubsub.UserChannel(req.RequesterID), EventNotificationCreated, toNotificationResponse(n))
	}
	return nil
}

func (s *friendService) deletePending(ctx context.Context, requesterID, recipientID string) error {
	rows, err := s.repo.Friend.DeleteEdge(ctx, requesterID, recipientID)
	if err != nil {
		s.logger.Error("删除好友请求失败", zap.Error(err))
		return err
	}
	if rows == 0 {
		return ErrFriendRequestNotFound
	}
	return nil
}

// ────────────────────── 列表 ──────────────────────

func (s *friendService) ListAccepted(ctx context.Context, me string) ([]dto.FriendResponse, error) {
	edges, err := s.repo.Friend.ListAccepted(ctx, me)
	if err != nil {
		s.logger.Error("查询好友列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.FriendResponse, 0, len(edges))
	for i := range edges {
		e := &edges[i]
		other := e.Recipient
		if e.RecipientID == me {
			other = e.Requester
		}
		item := dto.FriendResponse{User: briefOrID(other, e.Other(me))}
		if e.AcceptedAt != nil {
			item.AcceptedAt = formatTime(*e.AcceptedAt)
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *friendService) ListPending(ctx context.Context, me string) (*dto.PendingFriendsResponse, error) {
	incoming, err := s.repo.Friend.ListIncoming(ctx, me)
	if err != nil {
		s.logger.Error("查询收到的好友请求失败", zap.Error(err))
		return nil, err
	}
	outgoing, err := s.repo.Friend.ListOutgoing(ctx, me)
	if err != nil {
		s.logger.Error("查询发出的好友请求失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.PendingFriendsResponse{
		Incoming: make([]dto.FriendRequestResponse, 0, len(incoming)),
		Outgoing: make([]dto.FriendRequestResponse, 0, len(outgoing)),
	}
	for i := range incoming {
		resp.Incoming = append(resp.Incoming, dto.FriendRequestResponse{
			User:      briefOrID(incoming[i].Requester, incoming[i].RequesterID),
			CreatedAt: formatTime(incoming[i].UpdatedAt),
		})
	}
	for i := range outgoing {
		resp.Outgoing = append(resp.Outgoing, dto.FriendRequestResponse{
			User:      briefOrID(outgoing[i].Recipient, outgoing[i].RecipientID),
			CreatedAt: formatTime(outgoing[i].UpdatedAt),
		})
	}
	return resp, nil
}

// ────────────────────── Remove ──────────────────────

func (s *friendService) Remove(ctx context.Context, me, other string) error {
	rows, err := s.repo.Friend.DeleteBetween(ctx, me, other)
	if err != nil {
		s.logger.Error("删除好友关系失败", zap.Error(err))
		return err
	}
	if rows == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

// ────────────────────── Search ──────────────────────

func (s *friendService) Search(ctx context.Context, me, q string) ([]dto.FriendSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []dto.FriendSearchResult{}, nil
	}

	users, err := s.repo.User.SearchStudents(ctx, me, q, friendSearchLimit)
	if err != nil {
		s.logger.Error("搜索学生失败", zap.Error(err))
		return nil, err
	}

	status, err := s.relationMap(ctx, me)
	if err != nil {
		return nil, err
	}

	result := make([]dto.FriendSearchResult, 0, len(users))
	for i := range users {
		st, ok := status[users[i].UserID]
		if !ok {
			st = dto.RelationNone
		}
		result = append(result, dto.FriendSearchResult{User: *toUserBrief(&users[i]), Status: st})
	}
	return result, nil
}

// relationMap 计算 me 与其他用户的关系状态
func (s *friendService) relationMap(ctx context.Context, me string) (map[string]string, error) {
	status := make(map[string]string)

	accepted, err := s.repo.Friend.ListAccepted(ctx, me)
	if err != nil {
		s.logger.Error("查询好友列表失败", zap.Error(err))
		return nil, err
	}
	for i := range accepted {
		status[accepted[i].Other(me)] = dto.RelationFriends
	}

	incoming, err := s.repo.Friend.ListIncoming(ctx, me)
	if err != nil {
		s.logger.Error("查询收到的好友请求失败", zap.Error(err))
		return nil, err
	}
	for i := range incoming {
		status[incoming[i].RequesterID] = dto.RelationPendingIncoming
	}

	outgoing, err := s.repo.Friend.ListOutgoing(ctx, me)
	if err != nil {
		s.logger.Error("查询发出的好友请求失败", zap.Error(err))
		return nil, err
	}
	for i := range outgoing {
		if _, ok := status[outgoing[i].RecipientID]; !ok {
			status[outgoing[i].RecipientID] = dto.RelationPendingOutgoing
		}
	}
	return status, nil
}
