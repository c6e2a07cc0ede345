package dto

// ── 学习小组 DTO ──

// CreateStudyGroupRequest 创建小组请求
type CreateStudyGroupRequest struct {
	Name        string `json:"name"        binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

// StudyGroupSearchRequest 小组搜索参数
type StudyGroupSearchRequest struct {
	PaginationRequest
	Q string `form:"q" binding:"omitempty,max=50"`
}

// TransferOwnershipRequest 转让小组请求
type TransferOwnershipRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// StudyGroupResponse 小组信息
type StudyGroupResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Creator     *UserBrief `json:"creator,omitempty"`
	CreatorID   string     `json:"creator_id"`
	MemberCount int64      `json:"member_count"`
	IsMember    bool       `json:"is_member"`
	CreatedAt   string     `json:"created_at"`
}

// GroupMemberResponse 小组成员
type GroupMemberResponse struct {
	User     UserBrief `json:"user"`
	Role     string    `json:"role"`
	JoinedAt string    `json:"joined_at"`
}

// JoinGroupResponse 加入结果
type JoinGroupResponse struct {
	Joined bool `json:"joined"` // false 表示本来就是成员
}
