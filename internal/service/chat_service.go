package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	pkgerrors "campusconnect/backend/pkg/errors"
	"campusconnect/backend/pkg/pubsub"
)

// ── 聊天模块业务错误 ──

var (
	ErrChatSelf           = errors.New("不能和自己聊天")
	ErrChatNotFriends     = errors.New("只能与好友聊天")
	ErrChatRoomNotFound   = errors.New("聊天室不存在")
	ErrNotChatParticipant = errors.New("你不是该聊天室成员")
	ErrReplyNotInRoom     = errors.New("回复的消息不在当前聊天室")
	ErrMessageNotFound    = errors.New("消息不存在")
	ErrNotMessageSender   = errors.New("只能删除自己发送的消息")
)

// 实时事件类型
const (
	EventChatMessage        = "chat.message"
	EventChatMessageDeleted = "chat.message_deleted"
)

// ChatService 聊天业务接口
type ChatService interface {
	GetOrCreateDirectRoom(ctx context.Context, me string, req *dto.DirectRoomRequest) (*dto.ChatRoomResponse, error)
	CreateGroupRoom(ctx context.Context, me string, req *dto.CreateGroupRoomRequest) (*dto.ChatRoomResponse, error)
	ListRooms(ctx context.Context, me string) ([]dto.ChatRoomResponse, error)
	SendMessage(ctx context.Context, me, roomID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	// GetMessages 返回一页消息（时间正序），并把 last_read_at 推进到当前时间
	GetMessages(ctx context.Context, me, roomID string, req *dto.MessageListRequest) ([]dto.MessageResponse, int64, error)
	DeleteMessage(ctx context.Context, me, messageID string) error
	// EnsureParticipant 供实时订阅接口校验成员身份
	EnsureParticipant(ctx context.Context, me, roomID string) error
}

type chatService struct {
	repo      *repository.Repository
	publisher pubsub.Publisher
	logger    *zap.Logger
}

// NewChatService 创建 ChatService 实例
func NewChatService(repo *repository.Repository, publisher pubsub.Publisher, logger *zap.Logger) ChatService {
	return &chatService{repo: repo, publisher: publisher, logger: logger}
}

// ────────────────────── 房间 ──────────────────────

func (s *chatService) GetOrCreateDirectRoom(ctx context.Context, me string, req *dto.DirectRoomRequest) (*dto.ChatRoomResponse, error) {
	if req.FriendID == me {
		return nil, ErrChatSelf
	}
	ok, err := s.repo.Friend.AreFriends(ctx, me, req.FriendID)
	if err != nil {
		s.logger.Error("查询好友关系失败", zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrChatNotFriends
	}

	key := model.DirectKey(me, req.FriendID)
	room, err := s.repo.Chat.GetDirectRoom(ctx, key)
	if err == nil {
		return s.roomWithParticipants(ctx, room)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询私聊房间失败", zap.Error(err))
		return nil, err
	}

	room = &model.ChatRoom{Type: model.ChatRoomDirect, CreatorID: me, DirectKey: &key}
	if err := s.repo.Chat.CreateRoom(ctx, room, []string{me, req.FriendID}); err != nil {
		// 对方同时创建了同一房间
		if pkgerrors.IsUniqueViolation(err, "uk_chat_rooms_direct_key") {
			existing, getErr := s.repo.Chat.GetDirectRoom(ctx, key)
			if getErr != nil {
				s.logger.Error("查询私聊房间失败", zap.Error(getErr))
				return nil, getErr
			}
			return s.roomWithParticipants(ctx, existing)
		}
		s.logger.Error("创建私聊房间失败", zap.Error(err))
		return nil, err
	}
	return s.roomWithParticipants(ctx, room)
}

func (s *chatService) CreateGroupRoom(ctx context.Context, me string, req *dto.CreateGroupRoomRequest) (*dto.ChatRoomResponse, error) {
	seen := map[string]bool{me: true}
	var members []string
	for _, id := range req.MemberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return nil, ErrChatSelf
	}

	// 所有成员都必须是创建者的好友
	friends, err := s.repo.Friend.FilterFriends(ctx, me, members)
	if err != nil {
		s.logger.Error("查询好友关系失败", zap.Error(err))
		return nil, err
	}
	if len(friends) != len(members) {
		return nil, ErrChatNotFriends
	}

	name := strings.TrimSpace(req.Name)
	room := &model.ChatRoom{Type: model.ChatRoomGroup, Name: &name, CreatorID: me}
	if err := s.repo.Chat.CreateRoom(ctx, room, append([]string{me}, members...)); err != nil {
		s.logger.Error("创建群聊失败", zap.Error(err))
		return nil, err
	}
	return s.roomWithParticipants(ctx, room)
}

func (s *chatService) ListRooms(ctx context.Context, me string) ([]dto.ChatRoomResponse, error) {
	summaries, err := s.repo.Chat.ListRoomSummaries(ctx, me)
	if err != nil {
		s.logger.Error("查询聊天室列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ChatRoomResponse, 0, len(summaries))
	for i := range summaries {
		sum := &summaries[i]
		resp := toChatRoomResponse(&sum.Room)
		resp.UnreadCount = sum.UnreadCount
		if sum.LastMessage != nil {
			resp.LastMessage = toMessageResponse(sum.LastMessage)
		}
		result = append(result, *resp)
	}
	return result, nil
}

// ────────────────────── 消息 ──────────────────────

func (s *chatService) SendMessage(ctx context.Context, me, roomID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	if err := s.EnsureParticipant(ctx, me, roomID); err != nil {
		return nil, err
	}

	if req.ReplyToID != nil {
		parent, err := s.repo.Chat.GetMessage(ctx, *req.ReplyToID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrReplyNotInRoom
			}
			s.logger.Error("查询被回复消息失败", zap.Error(err))
			return nil, err
		}
		if parent.RoomID != roomID {
			return nil, ErrReplyNotInRoom
		}
	}

	msg := &model.ChatMessage{
		RoomID:    roomID,
		SenderID:  me,
		Body:      req.Body,
		ReplyToID: req.ReplyToID,
	}
	msg.CreatedAt = time.Now().UTC()
	if err := s.repo.Chat.CreateMessage(ctx, msg); err != nil {
		s.logger.Error("发送消息失败", zap.Error(err))
		return nil, err
	}
	if sender, err := s.repo.User.GetByID(ctx, me); err == nil {
		msg.Sender = sender
	}

	resp := toMessageResponse(msg)
	publishEvent(ctx, s.publisher, s.logger, pubsub.ChatChannel(roomID), EventChatMessage, resp)
	return resp, nil
}

func (s *chatService) GetMessages(ctx context.Context, me, roomID string, req *dto.MessageListRequest) ([]dto.MessageResponse, int64, error) {
	if err := s.EnsureParticipant(ctx, me, roomID); err != nil {
		return nil, 0, err
	}

	limit := req.GetLimit()
	msgs, total, err := s.repo.Chat.ListMessages(ctx, roomID, (req.GetPage()-1)*limit, limit)
	if err != nil {
		s.logger.Error("查询消息失败", zap.Error(err))
		return nil, 0, err
	}

	// 整个房间标记为已读
	if err := s.repo.Chat.MarkRead(ctx, roomID, me, time.Now().UTC()); err != nil {
		s.logger.Error("更新已读位置失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		result = append(result, *toMessageResponse(&msgs[i]))
	}
	return result, total, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, me, messageID string) error {
	msg, err := s.repo.Chat.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		s.logger.Error("查询消息失败", zap.Error(err))
		return err
	}
	if msg.SenderID != me {
		return ErrNotMessageSender
	}
	if msg.IsDeleted {
		return nil
	}

	if _, err := s.repo.Chat.SoftDeleteMessage(ctx, messageID, me); err != nil {
		s.logger.Error("删除消息失败", zap.Error(err))
		return err
	}
	msg.IsDeleted = true
	publishEvent(ctx, s.publisher, s.logger, pubsub.ChatChannel(msg.RoomID), EventChatMessageDeleted, toMessageResponse(msg))
	return nil
}

func (s *chatService) EnsureParticipant(ctx context.Context, me, roomID string) error {
	if _, err := s.repo.Chat.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatRoomNotFound
		}
		s.logger.Error("查询聊天室失败", zap.Error(err))
		return err
	}
	if _, err := s.repo.Chat.GetParticipant(ctx, roomID, me); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotChatParticipant
		}
		s.logger.Error("查询聊天室成员失败", zap.Error(err))
		return err
	}
	return nil
}

// ── 辅助函数 ──

func (s *chatService) roomWithParticipants(ctx context.Context, room *model.ChatRoom) (*dto.ChatRoomResponse, error) {
	participants, err := s.repo.Chat.ListParticipants(ctx, room.RoomID)
	if err != nil {
		s.logger.Error("查询聊天室成员失败", zap.Error(err))
		return nil, err
	}
	resp := toChatRoomResponse(room)
	for i := range participants {
		resp.Participants = append(resp.Participants, briefOrID(participants[i].User, participants[i].UserID))
	}
	return resp, nil
}

func toChatRoomResponse(room *model.ChatRoom) *dto.ChatRoomResponse {
	return &dto.ChatRoomResponse{
		ID:        room.RoomID,
		Type:      room.Type,
		Name:      room.Name,
		CreatorID: room.CreatorID,
		UpdatedAt: formatTime(room.UpdatedAt),
	}
}

func toMessageResponse(m *model.ChatMessage) *dto.MessageResponse {
	resp := &dto.MessageResponse{
		ID:        m.MessageID,
		RoomID:    m.RoomID,
		Sender:    toUserBrief(m.Sender),
		SenderID:  m.SenderID,
		Body:      m.Body,
		ReplyToID: m.ReplyToID,
		IsDeleted: m.IsDeleted,
		CreatedAt: formatTime(m.CreatedAt),
	}
	if m.IsDeleted {
		resp.Body = ""
	}
	return resp
}
