//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	"campusconnect/backend/pkg/database"
	pkgerrors "campusconnect/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=campus password=campus_password dbname=campus_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 使用正式迁移建表，约束与线上保持一致
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.ResetMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// truncate 清空所有业务表
func truncate(t *testing.T) {
	t.Helper()
	err := testDB.Exec(`TRUNCATE bug_reports, feedback_items, game_statistics, game_room_players, game_rooms,
		chat_messages, chat_participants, chat_rooms, group_members, study_groups, routines,
		notifications, friendships, student_profiles, users, departments CASCADE`).Error
	if err != nil {
		t.Fatalf("清空数据失败: %v", err)
	}
}

// seedStudents 创建院系与若干学生
func seedStudents(t *testing.T, repo *repository.Repository, n int) []*model.User {
	t.Helper()
	ctx := context.Background()

	dept := &model.Department{Code: "CS", Name: "Computer Science", IsActive: true}
	if err := repo.Department.Create(ctx, dept); err != nil {
		t.Fatalf("创建院系失败: %v", err)
	}

	users := make([]*model.User, 0, n)
	for i := 0; i < n; i++ {
		hash := "hash"
		u := &model.User{
			Name:         fmt.Sprintf("Student %d", i),
			Email:        fmt.Sprintf("s%d@campus.edu", i),
			PasswordHash: &hash,
			Role:         model.RoleStudent,
		}
		if err := repo.User.CreateWithProfile(ctx, u, &model.StudentProfile{DepartmentID: dept.DepartmentID}); err != nil {
			t.Fatalf("创建学生失败: %v", err)
		}
		users = append(users, u)
	}
	return users
}

// ═══════════════════════════════════════════════════════════
// Test: Users
// ═══════════════════════════════════════════════════════════

func TestUserRepo_EmailUnique(t *testing.T) {
	truncate(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	users := seedStudents(t, repo, 1)

	hash := "hash"
	dup := &model.User{Name: "Dup", Email: users[0].Email, PasswordHash: &hash, Role: model.RoleManager}
	err := repo.User.CreateWithProfile(ctx, dup, nil)
	if !pkgerrors.IsUniqueViolation(err, "uk_users_email") {
		t.Fatalf("期望邮箱唯一约束冲突，实际: %v", err)
	}

	role, err := repo.User.GetRole(ctx, users[0].UserID)
	if err != nil || role != model.RoleStudent {
		t.Errorf("GetRole = %q, %v", role, err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Routines
// ═══════════════════════════════════════════════════════════

func TestRoutineRepo_Overlap(t *testing.T) {
	truncate(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	owner := seedStudents(t, repo, 1)[0]

	first := &model.Routine{UserID: owner.UserID, Day: "monday", StartTime: "09:00", EndTime: "10:00", Activity: "Lecture", Type: model.RoutineTypeClass}
	if err := repo.Routine.Create(ctx, first); err != nil {
		t.Fatalf("创建日程失败: %v", err)
	}

	overlap := &model.Routine{UserID: owner.UserID, Day: "monday", StartTime: "09:30", EndTime: "11:00", Activity: "Lab", Type: model.RoutineTypeClass}
	if err := repo.Routine.Create(ctx, overlap); !errors.Is(err, pkgerrors.ErrTimeOverlap) {
		t.Fatalf("期望 ErrTimeOverlap，实际: %v", err)
	}

	// 首尾相接不算冲突
	adjacent := &model.Routine{UserID: owner.UserID, Day: "monday", StartTime: "10:00", EndTime: "11:00", Activity: "Study", Type: model.RoutineTypeStudy}
	if err := repo.Routine.Create(ctx, adjacent); err != nil {
		t.Fatalf("相邻日程应允许创建: %v", err)
	}

	skipped, err := repo.Routine.CreateBatch(ctx, []model.Routine{
		{UserID: owner.UserID, Day: "tuesday", StartTime: "08:00", EndTime: "09:00", Activity: "A", Type: model.RoutineTypeClass},
		{UserID: owner.UserID, Day: "monday", StartTime: "09:15", EndTime: "09:45", Activity: "B", Type: model.RoutineTypeClass},
	})
	if err != nil {
		t.Fatalf("CreateBatch 失败: %v", err)
	}
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Errorf("期望跳过下标 [1]，实际 %v", skipped)
	}

	list, err := repo.Routine.ListByUser(ctx, owner.UserID, "")
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("期望 3 条日程，实际 %d", len(list))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Friends & Notifications
// ═══════════════════════════════════════════════════════════

func TestFriendRepo_RequestAccept(t *testing.T) {
	truncate(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	users := seedStudents(t, repo, 2)
	a, b := users[0].UserID, users[1].UserID

	if _, err := repo.Friend.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest 失败: %v", err)
	}
	// 重复发送不产生第二条未读通知
	if _, err := repo.Friend.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("重复 SendRequest 失败: %v", err)
	}
	unread, err := repo.Notification.CountUnread(ctx, b)
	if err != nil || unread != 1 {
		t.Errorf("期望 1 条未读通知，实际 %d (%v)", unread, err)
	}

	if _, err := repo.Friend.Accept(ctx, a, b); err != nil {
		t.Fatalf("Accept 失败: %v", err)
	}
	ok, err := repo.Friend.AreFriends(ctx, b, a)
	if err != nil || !ok {
		t.Errorf("接受后应为好友: %v %v", ok, err)
	}

	removed, err := repo.Friend.DeleteBetween(ctx, b, a)
	if err != nil || removed != 1 {
		t.Errorf("DeleteBetween = %d, %v", removed, err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Game Rooms
// ═══════════════════════════════════════════════════════════

func TestGameRepo_OptimisticLockAndSweep(t *testing.T) {
	truncate(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	users := seedStudents(t, repo, 2)

	room := &model.GameRoom{
		Code:      "ABC123",
		GameType:  "tic_tac_toe",
		CreatorID: users[0].UserID,
		Status:    model.GameStatusWaiting,
		State:     datatypes.JSON(`{}`),
	}
	if err := repo.Game.Create(ctx, room, &model.GameRoomPlayer{UserID: users[0].UserID, Symbol: "X", Seat: 0}); err != nil {
		t.Fatalf("创建房间失败: %v", err)
	}

	loaded, err := repo.Game.GetByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetByCode 失败: %v", err)
	}
	stale := *loaded

	if err := repo.Game.AddPlayer(ctx, loaded, &model.GameRoomPlayer{UserID: users[1].UserID, Symbol: "O", Seat: 1}, true); err != nil {
		t.Fatalf("AddPlayer 失败: %v", err)
	}

	// 旧版本写入应失败
	stale.Status = model.GameStatusFinished
	if err := repo.Game.SaveState(ctx, &stale, nil); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Fatalf("期望 ErrOptimisticLock，实际: %v", err)
	}

	abandoned, err := repo.Game.AbandonIdlePlaying(ctx, time.Now().Add(time.Hour))
	if err != nil || abandoned != 1 {
		t.Errorf("AbandonIdlePlaying = %d, %v", abandoned, err)
	}
	after, _ := repo.Game.GetByCode(ctx, "ABC123")
	if after.Status != model.GameStatusFinished || after.WinnerID != nil {
		t.Errorf("闲置对局应无胜者结束: %+v", after)
	}

	stats, err := repo.Game.ListStats(ctx, users[0].UserID)
	if err != nil || len(stats) != 0 {
		t.Errorf("放弃的对局不应计入战绩: %v %v", stats, err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Chat
// ═══════════════════════════════════════════════════════════

func TestChatRepo_MessagesChronological(t *testing.T) {
	truncate(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	users := seedStudents(t, repo, 2)

	key := model.DirectKey(users[0].UserID, users[1].UserID)
	room := &model.ChatRoom{Type: "direct", CreatorID: users[0].UserID, DirectKey: &key}
	if err := repo.Chat.CreateRoom(ctx, room, []string{users[0].UserID, users[1].UserID}); err != nil {
		t.Fatalf("CreateRoom 失败: %v", err)
	}

	for i := 0; i < 3; i++ {
		msg := &model.ChatMessage{RoomID: room.RoomID, SenderID: users[i%2].UserID, Body: fmt.Sprintf("m%d", i)}
		if err := repo.Chat.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage 失败: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 最近两条，按时间正序
	msgs, total, err := repo.Chat.ListMessages(ctx, room.RoomID, 0, 2)
	if err != nil {
		t.Fatalf("ListMessages 失败: %v", err)
	}
	if total != 3 || len(msgs) != 2 {
		t.Fatalf("total=%d len=%d", total, len(msgs))
	}
	if msgs[0].Body != "m1" || msgs[1].Body != "m2" {
		t.Errorf("期望 [m1 m2]，实际 [%s %s]", msgs[0].Body, msgs[1].Body)
	}

	// 房间列表的最后一条消息带发送者
	summaries, err := repo.Chat.ListRoomSummaries(ctx, users[0].UserID)
	if err != nil || len(summaries) != 1 {
		t.Fatalf("ListRoomSummaries = %d, %v", len(summaries), err)
	}
	last := summaries[0].LastMessage
	if last == nil || last.Body != "m2" || last.Sender == nil || last.Sender.UserID != users[0].UserID {
		t.Errorf("最后一条消息应为 m2 且带发送者，实际 %+v", last)
	}

	n, err := repo.Chat.SoftDeleteMessage(ctx, msgs[0].MessageID, users[0].UserID)
	if err != nil || n != 0 {
		t.Errorf("非发送者删除应不生效: %d %v", n, err)
	}
}
