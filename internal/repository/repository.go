package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User         UserRepository
	Department   DepartmentRepository
	Friend       FriendRepository
	Notification NotificationRepository
	Routine      RoutineRepository
	StudyGroup   StudyGroupRepository
	Chat         ChatRepository
	Game         GameRepository
	Feedback     FeedbackRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:         NewUserRepo(db),
		Department:   NewDepartmentRepo(db),
		Friend:       NewFriendRepo(db),
		Notification: NewNotificationRepo(db),
		Routine:      NewRoutineRepo(db),
		StudyGroup:   NewStudyGroupRepo(db),
		Chat:         NewChatRepo(db),
		Game:         NewGameRepo(db),
		Feedback:     NewFeedbackRepo(db),
	}
}
