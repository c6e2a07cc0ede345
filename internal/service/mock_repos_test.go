package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	pkgerrors "campusconnect/backend/pkg/errors"
	"campusconnect/backend/pkg/jwt"
	"campusconnect/backend/pkg/validate"
)

// ── 测试环境 ──

type testEnv struct {
	cfg       *config.Config
	repo      *repository.Repository
	users     *mockUserRepo
	depts     *mockDepartmentRepo
	friends   *mockFriendRepo
	notes     *mockNotificationRepo
	routines  *mockRoutineRepo
	groups    *mockStudyGroupRepo
	chats     *mockChatRepo
	games     *mockGameRepo
	feedback  *mockFeedbackRepo
	tokens    *mockTokenStore
	publisher *mockPublisher
	jwtMgr    *jwt.Manager
	svc       *Service
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:   15 * time.Minute,
			RefreshTokenTTL:  7 * 24 * time.Hour,
			MaxLoginAttempts: 3,
			LockoutDuration:  15 * time.Minute,
		},
		Routine: config.RoutineConfig{
			WindowStart:    "08:00",
			WindowEnd:      "22:00",
			MinFreeMinutes: 30,
			Timezone:       "UTC",
		},
		Storage: config.StorageConfig{MaxBytes: 1 << 20},
		Feature: config.FeatureConfig{FriendsOnlyRoutines: true},
	}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		cfg:       newTestConfig(),
		users:     newMockUserRepo(),
		depts:     newMockDepartmentRepo(),
		notes:     newMockNotificationRepo(),
		routines:  newMockRoutineRepo(),
		groups:    newMockStudyGroupRepo(),
		chats:     newMockChatRepo(),
		games:     newMockGameRepo(),
		feedback:  newMockFeedbackRepo(),
		tokens:    newMockTokenStore(),
		publisher: &mockPublisher{},
	}
	env.friends = newMockFriendRepo(env.notes)
	env.chats.users = env.users
	env.repo = &repository.Repository{
		User:         env.users,
		Department:   env.depts,
		Friend:       env.friends,
		Notification: env.notes,
		Routine:      env.routines,
		StudyGroup:   env.groups,
		Chat:         env.chats,
		Game:         env.games,
		Feedback:     env.feedback,
	}
	env.jwtMgr = jwt.NewManager(&env.cfg.Auth)
	env.svc = NewService(env.cfg, env.repo, env.jwtMgr, Deps{
		Tokens:    env.tokens,
		Publisher: env.publisher,
	}, zap.NewNop())
	return env
}

// addStudent 直接写入一个学生用户
func (e *testEnv) addStudent(id, name string) *model.User {
	u := &model.User{UserID: id, Name: name, Email: strings.ToLower(name) + "@campus.edu", Role: model.RoleStudent}
	e.users.put(u)
	return u
}

func (e *testEnv) addUser(id, name, role string) *model.User {
	u := &model.User{UserID: id, Name: name, Email: strings.ToLower(name) + "@campus.edu", Role: role}
	e.users.put(u)
	return u
}

// makeFriends 建立已接受的好友关系
func (e *testEnv) makeFriends(a, b string) {
	now := time.Now()
	e.friends.edges = append(e.friends.edges, &model.Friendship{
		FriendshipID: fmt.Sprintf("fs-%s-%s", a, b),
		RequesterID:  a,
		RecipientID:  b,
		Status:       model.FriendStatusAccepted,
		AcceptedAt:   &now,
	})
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) put(u *model.User) {
	m.users[u.UserID] = u
}

func (m *mockUserRepo) CreateWithProfile(_ context.Context, user *model.User, profile *model.StudentProfile) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate email")
		}
	}
	m.seq++
	if user.UserID == "" {
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	if profile != nil {
		profile.UserID = user.UserID
		user.StudentProfile = profile
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	for _, u := range m.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetRole(_ context.Context, id string) (string, error) {
	if u, ok := m.users[id]; ok {
		return u.Role, nil
	}
	return "", gorm.ErrRecordNotFound
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, user *model.User, profile *model.StudentProfile) error {
	if _, ok := m.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if profile != nil {
		profile.UserID = user.UserID
		user.StudentProfile = profile
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) LinkGoogle(_ context.Context, userID, googleID string) error {
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.GoogleID = &googleID
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, userID, role string, profile *model.StudentProfile) error {
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Role = role
	if profile != nil {
		profile.UserID = userID
	}
	u.StudentProfile = profile
	return nil
}

func (m *mockUserRepo) sorted() []model.User {
	all := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return all
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	var matched []model.User
	for _, u := range m.sorted() {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Q != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(filter.Q)) {
			continue
		}
		matched = append(matched, u)
	}
	return paginate(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockUserRepo) SearchStudents(_ context.Context, excludeID, q string, limit int) ([]model.User, error) {
	var result []model.User
	for _, u := range m.sorted() {
		if u.UserID == excludeID || u.Role != model.RoleStudent {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(q)) {
			result = append(result, u)
		}
	}
	return paginate(result, 0, limit), nil
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var result []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) CountByRole(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, u := range m.users {
		out[u.Role]++
	}
	return out, nil
}

// ── Mock DepartmentRepository ──

type mockDepartmentRepo struct {
	depts map[string]*model.Department
}

func newMockDepartmentRepo() *mockDepartmentRepo {
	return &mockDepartmentRepo{depts: make(map[string]*model.Department)}
}

func (m *mockDepartmentRepo) List(_ context.Context, includeInactive bool) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.depts {
		if d.IsActive || includeInactive {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *mockDepartmentRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.depts[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDepartmentRepo) GetByCode(_ context.Context, code string) (*model.Department, error) {
	for _, d := range m.depts {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDepartmentRepo) Create(_ context.Context, dept *model.Department) error {
	if dept.DepartmentID == "" {
		dept.DepartmentID = "dept-" + dept.Code
	}
	cp := *dept
	m.depts[dept.DepartmentID] = &cp
	return nil
}

func (m *mockDepartmentRepo) Update(_ context.Context, dept *model.Department) error {
	if _, ok := m.depts[dept.DepartmentID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *dept
	m.depts[dept.DepartmentID] = &cp
	return nil
}

// ── Mock FriendRepository ──

type mockFriendRepo struct {
	edges []*model.Friendship
	notes *mockNotificationRepo
	seq   int
}

func newMockFriendRepo(notes *mockNotificationRepo) *mockFriendRepo {
	return &mockFriendRepo{notes: notes}
}

func (m *mockFriendRepo) find(requesterID, recipientID string) *model.Friendship {
	for _, e := range m.edges {
		if e.RequesterID == requesterID && e.RecipientID == recipientID {
			return e
		}
	}
	return nil
}

func (m *mockFriendRepo) Between(_ context.Context, a, b string) ([]model.Friendship, error) {
	var result []model.Friendship
	for _, e := range m.edges {
		if (e.RequesterID == a && e.RecipientID == b) || (e.RequesterID == b && e.RecipientID == a) {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) GetPending(_ context.Context, requesterID, recipientID string) (*model.Friendship, error) {
	if e := m.find(requesterID, recipientID); e != nil && e.Status == model.FriendStatusPending {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFriendRepo) SendRequest(_ context.Context, requesterID, recipientID string) (*model.Notification, error) {
	if e := m.find(requesterID, recipientID); e != nil {
		e.Status = model.FriendStatusPending
		e.AcceptedAt = nil
		e.UpdatedAt = time.Now()
	} else {
		m.seq++
		m.edges = append(m.edges, &model.Friendship{
			FriendshipID: fmt.Sprintf("fs-%d", m.seq),
			RequesterID:  requesterID,
			RecipientID:  recipientID,
			Status:       model.FriendStatusPending,
			BaseModel:    model.BaseModel{CreatedAt: time.Now(), UpdatedAt: time.Now()},
		})
	}
	return m.notes.insert(recipientID, requesterID, model.NotificationFriendRequestReceived), nil
}

func (m *mockFriendRepo) Accept(_ context.Context, requesterID, recipientID string) (*model.Notification, error) {
	e := m.find(requesterID, recipientID)
	if e == nil || e.Status != model.FriendStatusPending {
		return nil, gorm.ErrRecordNotFound
	}
	now := time.Now()
	e.Status = model.FriendStatusAccepted
	e.AcceptedAt = &now
	return m.notes.insert(requesterID, recipientID, model.NotificationFriendRequestAccepted), nil
}

func (m *mockFriendRepo) DeleteEdge(_ context.Context, requesterID, recipientID string) (int64, error) {
	for i, e := range m.edges {
		if e.RequesterID == requesterID && e.RecipientID == recipientID && e.Status == model.FriendStatusPending {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockFriendRepo) DeleteBetween(_ context.Context, a, b string) (int64, error) {
	var kept []*model.Friendship
	var rows int64
	for _, e := range m.edges {
		if (e.RequesterID == a && e.RecipientID == b) || (e.RequesterID == b && e.RecipientID == a) {
			rows++
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	return rows, nil
}

func (m *mockFriendRepo) ListAccepted(_ context.Context, userID string) ([]model.Friendship, error) {
	var result []model.Friendship
	for _, e := range m.edges {
		if e.Status == model.FriendStatusAccepted && (e.RequesterID == userID || e.RecipientID == userID) {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) ListIncoming(_ context.Context, userID string) ([]model.Friendship, error) {
	var result []model.Friendship
	for _, e := range m.edges {
		if e.Status == model.FriendStatusPending && e.RecipientID == userID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) ListOutgoing(_ context.Context, userID string) ([]model.Friendship, error) {
	var result []model.Friendship
	for _, e := range m.edges {
		if e.Status == model.FriendStatusPending && e.RequesterID == userID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	edges, _ := m.Between(ctx, a, b)
	for _, e := range edges {
		if e.Status == model.FriendStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFriendRepo) FilterFriends(ctx context.Context, userID string, candidates []string) ([]string, error) {
	var result []string
	for _, c := range candidates {
		if ok, _ := m.AreFriends(ctx, userID, c); ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []*model.Notification
	seq   int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

// insert 同一 (recipient, actor, type) 已有未读通知时返回 nil
func (m *mockNotificationRepo) insert(recipientID, actorID, typ string) *model.Notification {
	for _, n := range m.items {
		if n.RecipientID == recipientID && n.ActorID == actorID && n.Type == typ && !n.IsRead {
			return nil
		}
	}
	m.seq++
	n := &model.Notification{
		NotificationID: fmt.Sprintf("n-%d", m.seq),
		RecipientID:    recipientID,
		ActorID:        actorID,
		Type:           typ,
		CreatedAt:      time.Now().Add(time.Duration(m.seq) * time.Millisecond),
	}
	m.items = append(m.items, n)
	cp := *n
	return &cp
}

func (m *mockNotificationRepo) byRecipient(recipientID string, unreadOnly bool) []model.Notification {
	var result []model.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	return result
}

func (m *mockNotificationRepo) List(_ context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	all := m.byRecipient(recipientID, unreadOnly)
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, recipientID string) (int64, error) {
	return int64(len(m.byRecipient(recipientID, true))), nil
}

func (m *mockNotificationRepo) get(recipientID, id string) *model.Notification {
	for _, n := range m.items {
		if n.NotificationID == id && n.RecipientID == recipientID {
			return n
		}
	}
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, recipientID, id string) (*model.Notification, error) {
	if n := m.get(recipientID, id); n != nil {
		cp := *n
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, recipientID, id string) (int64, error) {
	n := m.get(recipientID, id)
	if n == nil || n.IsRead {
		return 0, nil
	}
	now := time.Now()
	n.IsRead, n.ReadAt = true, &now
	return 1, nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	var rows int64
	now := time.Now()
	for _, n := range m.items {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead, n.ReadAt = true, &now
			rows++
		}
	}
	return rows, nil
}

func (m *mockNotificationRepo) MarkUnread(_ context.Context, recipientID, id string) (int64, error) {
	n := m.get(recipientID, id)
	if n == nil || !n.IsRead {
		return 0, nil
	}
	for _, other := range m.items {
		if other != n && other.RecipientID == recipientID && other.ActorID == n.ActorID && other.Type == n.Type && !other.IsRead {
			return 0, nil
		}
	}
	n.IsRead, n.ReadAt = false, nil
	return 1, nil
}

func (m *mockNotificationRepo) MarkAllUnread(ctx context.Context, recipientID string) (int64, error) {
	var rows int64
	for _, n := range m.items {
		if n.RecipientID == recipientID && n.IsRead {
			r, _ := m.MarkUnread(ctx, recipientID, n.NotificationID)
			rows += r
		}
	}
	return rows, nil
}

// ── Mock RoutineRepository ──

type mockRoutineRepo struct {
	routines map[string]*model.Routine
	seq      int
}

func newMockRoutineRepo() *mockRoutineRepo {
	return &mockRoutineRepo{routines: make(map[string]*model.Routine)}
}

func (m *mockRoutineRepo) ListByUser(_ context.Context, userID, day string) ([]model.Routine, error) {
	var result []model.Routine
	for _, r := range m.routines {
		if r.UserID == userID && (day == "" || r.Day == day) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day != result[j].Day {
			return weekdayIndex(result[i].Day) < weekdayIndex(result[j].Day)
		}
		return validate.NormalizeClock(result[i].StartTime) < validate.NormalizeClock(result[j].StartTime)
	})
	return result, nil
}

func (m *mockRoutineRepo) GetByIDAndOwner(_ context.Context, id, ownerID string) (*model.Routine, error) {
	if r, ok := m.routines[id]; ok && r.UserID == ownerID {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoutineRepo) HasOverlap(_ context.Context, userID, day, start, end, excludeID string) (bool, error) {
	s, _ := validate.ParseClock(start)
	e, _ := validate.ParseClock(end)
	for _, r := range m.routines {
		if r.UserID != userID || r.Day != day || r.RoutineID == excludeID {
			continue
		}
		rs, _ := validate.ParseClock(r.StartTime)
		re, _ := validate.ParseClock(r.EndTime)
		if s < re && rs < e {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoutineRepo) Create(ctx context.Context, routine *model.Routine) error {
	overlap, _ := m.HasOverlap(ctx, routine.UserID, routine.Day, routine.StartTime, routine.EndTime, "")
	if overlap {
		return pkgerrors.ErrTimeOverlap
	}
	m.seq++
	routine.RoutineID = fmt.Sprintf("rt-%d", m.seq)
	cp := *routine
	m.routines[routine.RoutineID] = &cp
	return nil
}

func (m *mockRoutineRepo) Update(ctx context.Context, routine *model.Routine) error {
	existing, ok := m.routines[routine.RoutineID]
	if !ok || existing.UserID != routine.UserID {
		return gorm.ErrRecordNotFound
	}
	overlap, _ := m.HasOverlap(ctx, routine.UserID, routine.Day, routine.StartTime, routine.EndTime, routine.RoutineID)
	if overlap {
		return pkgerrors.ErrTimeOverlap
	}
	cp := *routine
	m.routines[routine.RoutineID] = &cp
	return nil
}

func (m *mockRoutineRepo) Delete(_ context.Context, id, ownerID string) (int64, error) {
	if r, ok := m.routines[id]; ok && r.UserID == ownerID {
		delete(m.routines, id)
		return 1, nil
	}
	return 0, nil
}

func (m *mockRoutineRepo) CreateBatch(ctx context.Context, routines []model.Routine) ([]int, error) {
	var skipped []int
	for i := range routines {
		if err := m.Create(ctx, &routines[i]); err != nil {
			skipped = append(skipped, i)
		}
	}
	return skipped, nil
}

// ── Mock StudyGroupRepository ──

type mockStudyGroupRepo struct {
	groups  map[string]*model.StudyGroup
	members []*model.GroupMember
	seq     int
}

func newMockStudyGroupRepo() *mockStudyGroupRepo {
	return &mockStudyGroupRepo{groups: make(map[string]*model.StudyGroup)}
}

func (m *mockStudyGroupRepo) CreateWithCreator(_ context.Context, group *model.StudyGroup) error {
	m.seq++
	group.GroupID = fmt.Sprintf("grp-%d", m.seq)
	cp := *group
	m.groups[group.GroupID] = &cp
	m.members = append(m.members, &model.GroupMember{GroupID: group.GroupID, UserID: group.CreatorID, Role: model.GroupRoleCreator, JoinedAt: time.Now()})
	return nil
}

func (m *mockStudyGroupRepo) GetByID(_ context.Context, id string) (*model.StudyGroup, error) {
	if g, ok := m.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudyGroupRepo) Delete(_ context.Context, id string) error {
	delete(m.groups, id)
	var kept []*model.GroupMember
	for _, mem := range m.members {
		if mem.GroupID != id {
			kept = append(kept, mem)
		}
	}
	m.members = kept
	return nil
}

func (m *mockStudyGroupRepo) Search(_ context.Context, q string, offset, limit int) ([]model.StudyGroup, int64, error) {
	var matched []model.StudyGroup
	for _, g := range m.groups {
		if q == "" || strings.Contains(strings.ToLower(g.Name+" "+g.Description), strings.ToLower(q)) {
			matched = append(matched, *g)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].GroupID < matched[j].GroupID })
	return paginate(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockStudyGroupRepo) ListByMember(_ context.Context, userID string) ([]model.StudyGroup, error) {
	var result []model.StudyGroup
	for _, mem := range m.members {
		if mem.UserID == userID {
			if g, ok := m.groups[mem.GroupID]; ok {
				result = append(result, *g)
			}
		}
	}
	return result, nil
}

func (m *mockStudyGroupRepo) GetMember(_ context.Context, groupID, userID string) (*model.GroupMember, error) {
	for _, mem := range m.members {
		if mem.GroupID == groupID && mem.UserID == userID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudyGroupRepo) AddMember(ctx context.Context, groupID, userID string) (bool, error) {
	if _, err := m.GetMember(ctx, groupID, userID); err == nil {
		return false, nil
	}
	m.members = append(m.members, &model.GroupMember{GroupID: groupID, UserID: userID, Role: model.GroupRoleMember, JoinedAt: time.Now()})
	return true, nil
}

func (m *mockStudyGroupRepo) RemoveMember(_ context.Context, groupID, userID string) (int64, error) {
	for i, mem := range m.members {
		if mem.GroupID == groupID && mem.UserID == userID {
			m.members = append(m.members[:i], m.members[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockStudyGroupRepo) ListMembers(_ context.Context, groupID string) ([]model.GroupMember, error) {
	var result []model.GroupMember
	for _, mem := range m.members {
		if mem.GroupID == groupID {
			result = append(result, *mem)
		}
	}
	return result, nil
}

func (m *mockStudyGroupRepo) CountByRole(_ context.Context, groupID, role string) (int64, error) {
	var n int64
	for _, mem := range m.members {
		if mem.GroupID == groupID && mem.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *mockStudyGroupRepo) CountMembers(_ context.Context, groupIDs []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, id := range groupIDs {
		for _, mem := range m.members {
			if mem.GroupID == id {
				out[id]++
			}
		}
	}
	return out, nil
}

func (m *mockStudyGroupRepo) MemberOf(_ context.Context, userID string, groupIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range groupIDs {
		for _, mem := range m.members {
			if mem.GroupID == id && mem.UserID == userID {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (m *mockStudyGroupRepo) TransferOwnership(_ context.Context, groupID, fromUserID, toUserID string) error {
	var from, to *model.GroupMember
	for _, mem := range m.members {
		if mem.GroupID != groupID {
			continue
		}
		switch mem.UserID {
		case fromUserID:
			from = mem
		case toUserID:
			to = mem
		}
	}
	if from == nil || to == nil {
		return gorm.ErrRecordNotFound
	}
	from.Role, to.Role = model.GroupRoleMember, model.GroupRoleCreator
	m.groups[groupID].CreatorID = toUserID
	return nil
}

// ── Mock ChatRepository ──

type mockChatRepo struct {
	rooms        map[string]*model.ChatRoom
	participants []*model.ChatParticipant
	messages     []*model.ChatMessage
	seq          int
	// users 用于模拟读取消息时加载发送者
	users *mockUserRepo
}

// withSender 返回带发送者的消息副本，与真实仓储读取时的行为一致
func (m *mockChatRepo) withSender(msg *model.ChatMessage) model.ChatMessage {
	cp := *msg
	cp.Sender = nil
	if m.users != nil {
		if u, ok := m.users.users[msg.SenderID]; ok {
			sender := *u
			cp.Sender = &sender
		}
	}
	return cp
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{rooms: make(map[string]*model.ChatRoom)}
}

func (m *mockChatRepo) next(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockChatRepo) GetRoom(_ context.Context, roomID string) (*model.ChatRoom, error) {
	if r, ok := m.rooms[roomID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockChatRepo) GetDirectRoom(_ context.Context, directKey string) (*model.ChatRoom, error) {
	for _, r := range m.rooms {
		if r.DirectKey != nil && *r.DirectKey == directKey {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockChatRepo) CreateRoom(_ context.Context, room *model.ChatRoom, userIDs []string) error {
	room.RoomID = m.next("room")
	room.UpdatedAt = time.Now()
	cp := *room
	m.rooms[room.RoomID] = &cp
	for _, uid := range userIDs {
		m.participants = append(m.participants, &model.ChatParticipant{
			ParticipantID: m.next("p"),
			RoomID:        room.RoomID,
			UserID:        uid,
			JoinedAt:      time.Now(),
		})
	}
	return nil
}

func (m *mockChatRepo) GetParticipant(_ context.Context, roomID, userID string) (*model.ChatParticipant, error) {
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockChatRepo) ListParticipants(_ context.Context, roomID string) ([]model.ChatParticipant, error) {
	var result []model.ChatParticipant
	for _, p := range m.participants {
		if p.RoomID == roomID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockChatRepo) ListRoomSummaries(_ context.Context, userID string) ([]model.RoomSummary, error) {
	var result []model.RoomSummary
	for _, p := range m.participants {
		if p.UserID != userID {
			continue
		}
		room := *m.rooms[p.RoomID]
		summary := model.RoomSummary{Room: room}
		for _, msg := range m.messages {
			if msg.RoomID != room.RoomID {
				continue
			}
			cp := m.withSender(msg)
			summary.LastMessage = &cp
			if msg.SenderID != userID && (p.LastReadAt == nil || msg.CreatedAt.After(*p.LastReadAt)) {
				summary.UnreadCount++
			}
		}
		result = append(result, summary)
	}
	return result, nil
}

func (m *mockChatRepo) CreateMessage(_ context.Context, msg *model.ChatMessage) error {
	msg.MessageID = m.next("msg")
	msg.CreatedAt = time.Now().Add(-time.Hour).Add(time.Duration(m.seq) * time.Millisecond)
	cp := *msg
	m.messages = append(m.messages, &cp)
	if r, ok := m.rooms[msg.RoomID]; ok {
		r.UpdatedAt = msg.CreatedAt
	}
	return nil
}

func (m *mockChatRepo) GetMessage(_ context.Context, messageID string) (*model.ChatMessage, error) {
	for _, msg := range m.messages {
		if msg.MessageID == messageID {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockChatRepo) ListMessages(_ context.Context, roomID string, offset, limit int) ([]model.ChatMessage, int64, error) {
	var newest []model.ChatMessage
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].RoomID == roomID {
			newest = append(newest, m.withSender(m.messages[i]))
		}
	}
	page := paginate(newest, offset, limit)
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, int64(len(newest)), nil
}

func (m *mockChatRepo) SoftDeleteMessage(_ context.Context, messageID, senderID string) (int64, error) {
	for _, msg := range m.messages {
		if msg.MessageID == messageID && msg.SenderID == senderID && !msg.IsDeleted {
			msg.IsDeleted = true
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockChatRepo) MarkRead(_ context.Context, roomID, userID string, at time.Time) error {
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID {
			t := at
			p.LastReadAt = &t
		}
	}
	return nil
}

// ── Mock GameRepository ──

type mockGameRepo struct {
	rooms map[string]*model.GameRoom // key: code
	stats map[string]*model.GameStatistic
	seq   int
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		rooms: make(map[string]*model.GameRoom),
		stats: make(map[string]*model.GameStatistic),
	}
}

func cloneRoom(r *model.GameRoom) *model.GameRoom {
	cp := *r
	cp.State = append([]byte(nil), r.State...)
	cp.Players = append([]model.GameRoomPlayer(nil), r.Players...)
	return &cp
}

func (m *mockGameRepo) Create(_ context.Context, room *model.GameRoom, creator *model.GameRoomPlayer) error {
	if _, ok := m.rooms[room.Code]; ok {
		return fmt.Errorf("duplicate room code")
	}
	m.seq++
	room.RoomID = fmt.Sprintf("gr-%d", m.seq)
	creator.RoomID = room.RoomID
	room.Players = []model.GameRoomPlayer{*creator}
	m.rooms[room.Code] = cloneRoom(room)
	return nil
}

func (m *mockGameRepo) GetByCode(_ context.Context, code string) (*model.GameRoom, error) {
	if r, ok := m.rooms[code]; ok {
		return cloneRoom(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGameRepo) save(room *model.GameRoom) error {
	stored, ok := m.rooms[room.Code]
	if !ok || stored.Version != room.Version {
		return pkgerrors.ErrOptimisticLock
	}
	room.Version++
	players := stored.Players
	stored = cloneRoom(room)
	stored.Players = players
	m.rooms[room.Code] = stored
	return nil
}

func (m *mockGameRepo) AddPlayer(_ context.Context, room *model.GameRoom, player *model.GameRoomPlayer, full bool) error {
	player.RoomID = room.RoomID
	if full {
		room.Status = model.GameStatusPlaying
	}
	if err := m.save(room); err != nil {
		return err
	}
	stored := m.rooms[room.Code]
	stored.Players = append(stored.Players, *player)
	return nil
}

func (m *mockGameRepo) SaveState(_ context.Context, room *model.GameRoom, results []model.GameResult) error {
	if err := m.save(room); err != nil {
		return err
	}
	for _, res := range results {
		key := res.UserID + "|" + room.GameType
		st, ok := m.stats[key]
		if !ok {
			st = &model.GameStatistic{UserID: res.UserID, GameType: room.GameType}
			m.stats[key] = st
		}
		switch res.Result {
		case "win":
			st.Wins++
		case "loss":
			st.Losses++
		default:
			st.Draws++
		}
		st.TotalGames++
	}
	return nil
}

func (m *mockGameRepo) ListByPlayer(_ context.Context, userID string, limit int) ([]model.GameRoom, error) {
	var result []model.GameRoom
	for _, r := range m.rooms {
		if findPlayer(r, userID) != nil {
			result = append(result, *cloneRoom(r))
		}
	}
	return paginate(result, 0, limit), nil
}

func (m *mockGameRepo) ListStats(_ context.Context, userID string) ([]model.GameStatistic, error) {
	var result []model.GameStatistic
	for _, st := range m.stats {
		if st.UserID == userID {
			result = append(result, *st)
		}
	}
	return result, nil
}

func (m *mockGameRepo) Leaderboard(_ context.Context, gameType string, limit int) ([]model.GameStatistic, error) {
	var result []model.GameStatistic
	for _, st := range m.stats {
		if st.GameType == gameType {
			result = append(result, *st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Wins > result[j].Wins })
	return paginate(result, 0, limit), nil
}

func (m *mockGameRepo) DeleteStaleWaiting(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for code, r := range m.rooms {
		if r.Status == model.GameStatusWaiting && r.UpdatedAt.Before(before) {
			delete(m.rooms, code)
			n++
		}
	}
	return n, nil
}

func (m *mockGameRepo) AbandonIdlePlaying(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for _, r := range m.rooms {
		if r.Status == model.GameStatusPlaying && r.UpdatedAt.Before(before) {
			r.Status = model.GameStatusFinished
			n++
		}
	}
	return n, nil
}

// ── Mock FeedbackRepository ──

type mockFeedbackRepo struct {
	items map[string]*model.FeedbackItem
	bugs  map[string]*model.BugReport
	seq   int
}

func newMockFeedbackRepo() *mockFeedbackRepo {
	return &mockFeedbackRepo{
		items: make(map[string]*model.FeedbackItem),
		bugs:  make(map[string]*model.BugReport),
	}
}

func (m *mockFeedbackRepo) CreateFeedback(_ context.Context, item *model.FeedbackItem) error {
	m.seq++
	item.FeedbackID = fmt.Sprintf("fb-%d", m.seq)
	cp := *item
	m.items[item.FeedbackID] = &cp
	return nil
}

func (m *mockFeedbackRepo) CreateBug(_ context.Context, bug *model.BugReport) error {
	m.seq++
	bug.BugID = fmt.Sprintf("bug-%d", m.seq)
	cp := *bug
	m.bugs[bug.BugID] = &cp
	return nil
}

func (m *mockFeedbackRepo) GetFeedback(_ context.Context, id string) (*model.FeedbackItem, error) {
	if f, ok := m.items[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFeedbackRepo) GetBug(_ context.Context, id string) (*model.BugReport, error) {
	if b, ok := m.bugs[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFeedbackRepo) ListFeedback(_ context.Context, filter repository.FeedbackFilter, offset, limit int) ([]model.FeedbackItem, int64, error) {
	var matched []model.FeedbackItem
	for _, f := range m.items {
		if (filter.Status == "" || f.Status == filter.Status) && (filter.Category == "" || f.Category == filter.Category) {
			matched = append(matched, *f)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].FeedbackID < matched[j].FeedbackID })
	return paginate(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockFeedbackRepo) ListBugs(_ context.Context, filter repository.BugFilter, offset, limit int) ([]model.BugReport, int64, error) {
	var matched []model.BugReport
	for _, b := range m.bugs {
		if (filter.Status == "" || b.Status == filter.Status) && (filter.Severity == "" || b.Severity == filter.Severity) {
			matched = append(matched, *b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].BugID < matched[j].BugID })
	return paginate(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockFeedbackRepo) UpdateFeedbackStatus(_ context.Context, id, from, to string, notes *string) (int64, error) {
	f, ok := m.items[id]
	if !ok || f.Status != from {
		return 0, nil
	}
	f.Status = to
	if notes != nil {
		f.AdminNotes = notes
	}
	return 1, nil
}

func (m *mockFeedbackRepo) UpdateBugStatus(_ context.Context, id, from, to string, notes *string) (int64, error) {
	b, ok := m.bugs[id]
	if !ok || b.Status != from {
		return 0, nil
	}
	b.Status = to
	if notes != nil {
		b.AdminNotes = notes
	}
	return 1, nil
}

func (m *mockFeedbackRepo) CountFeedbackByStatus(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, f := range m.items {
		out[f.Status]++
	}
	return out, nil
}

func (m *mockFeedbackRepo) CountBugsByStatus(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, b := range m.bugs {
		out[b.Status]++
	}
	return out, nil
}

// ── Mock TokenStore ──

type mockTokenStore struct {
	blacklist map[string]bool
	failures  map[string]int
	locked    map[string]bool
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{
		blacklist: make(map[string]bool),
		failures:  make(map[string]int),
		locked:    make(map[string]bool),
	}
}

func (m *mockTokenStore) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	m.blacklist[jti] = true
	return nil
}

func (m *mockTokenStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return m.blacklist[jti], nil
}

func (m *mockTokenStore) RecordLoginFailure(_ context.Context, subject string, maxAttempts int, _ time.Duration) (bool, error) {
	m.failures[subject]++
	if m.failures[subject] >= maxAttempts {
		m.locked[subject] = true
		return true, nil
	}
	return false, nil
}

func (m *mockTokenStore) IsLoginLocked(_ context.Context, subject string) (bool, error) {
	return m.locked[subject], nil
}

func (m *mockTokenStore) ClearLoginFailures(_ context.Context, subject string) error {
	delete(m.failures, subject)
	return nil
}

// ── Mock Publisher ──

type publishedEvent struct {
	Channel string
	Type    string
	Data    interface{}
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockPublisher) Publish(_ context.Context, channel, eventType string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{Channel: channel, Type: eventType, Data: data})
	return nil
}

func (m *mockPublisher) count(channel, eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Channel == channel && e.Type == eventType {
			n++
		}
	}
	return n
}

// ── 辅助函数 ──

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
