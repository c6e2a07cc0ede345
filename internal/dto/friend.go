package dto

// ── 好友模块 DTO ──

// 好友请求处理动作
const (
	FriendActionAccept  = "accept"
	FriendActionDecline = "decline"
)

// 搜索结果中的关系状态
const (
	RelationNone            = "none"
	RelationFriends         = "friends"
	RelationPendingIncoming = "pending_incoming"
	RelationPendingOutgoing = "pending_outgoing"
)

// SendFriendRequest 发送好友请求
type SendFriendRequest struct {
	TargetID string `json:"target_id" binding:"required,uuid"`
}

// RespondFriendRequest 处理好友请求
// requester_id：处理收到的请求；recipient_id：撤回自己发出的请求。二者必须且只能提供其一
type RespondFriendRequest struct {
	RequesterID string `json:"requester_id" binding:"omitempty,uuid"`
	RecipientID string `json:"recipient_id" binding:"omitempty,uuid"`
	Action      string `json:"action"       binding:"required,oneof=accept decline"`
}

// FriendSearchRequest 搜索学生
type FriendSearchRequest struct {
	Q string `form:"q" binding:"required,min=1,max=50"`
}

// FriendResponse 好友条目
type FriendResponse struct {
	User       UserBrief `json:"user"`
	AcceptedAt string    `json:"accepted_at"`
}

// FriendRequestResponse 待处理请求条目
type FriendRequestResponse struct {
	User      UserBrief `json:"user"`
	CreatedAt string    `json:"created_at"`
}

// PendingFriendsResponse 待处理请求（收到 / 发出）
type PendingFriendsResponse struct {
	Incoming []FriendRequestResponse `json:"incoming"`
	Outgoing []FriendRequestResponse `json:"outgoing"`
}

// FriendSearchResult 搜索结果条目
type FriendSearchResult struct {
	User   UserBrief `json:"user"`
	Status string    `json:"status"`
}
