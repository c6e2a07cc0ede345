package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
)

func seedDepartments(env *testEnv) {
	env.depts.Create(context.Background(), &model.Department{DepartmentID: "dept-cs", Code: "CS", Name: "计算机", IsActive: true})
	env.depts.Create(context.Background(), &model.Department{DepartmentID: "dept-ee", Code: "EE", Name: "电子工程", IsActive: true})
	env.depts.Create(context.Background(), &model.Department{DepartmentID: "dept-old", Code: "OLD", Name: "已撤销", IsActive: false})
}

func registerStudent(t *testing.T, env *testEnv, name, email, dept string) *dto.TokenResponse {
	t.Helper()
	resp, err := env.svc.Auth.Register(context.Background(), &dto.RegisterRequest{
		Name:           name,
		Email:          email,
		Password:       "password123",
		Role:           model.RoleStudent,
		DepartmentCode: dept,
	})
	if err != nil {
		t.Fatalf("注册 %s 失败: %v", email, err)
	}
	return resp
}

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)

	resp := registerStudent(t, env, "张三", " ZhangSan@Campus.edu ", "cs")

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("应返回 AccessToken 与 RefreshToken")
	}
	if resp.User.Email != "zhangsan@campus.edu" {
		t.Errorf("邮箱应被规范化，实际=%s", resp.User.Email)
	}
	if resp.User.Department == nil || resp.User.Department.Code != "CS" {
		t.Errorf("学生应关联院系 CS，实际=%+v", resp.User.Department)
	}

	stored, err := env.users.GetByEmail(context.Background(), "zhangsan@campus.edu")
	if err != nil {
		t.Fatalf("用户未写入: %v", err)
	}
	if stored.PasswordHash == nil || *stored.PasswordHash == "password123" {
		t.Error("密码应以哈希形式存储")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	registerStudent(t, env, "张三", "zs@campus.edu", "CS")

	tests := []struct {
		name    string
		req     dto.RegisterRequest
		wantErr error
	}{
		{"邮箱重复", dto.RegisterRequest{Name: "x", Email: "ZS@campus.edu", Password: "password123", DepartmentCode: "CS"}, ErrEmailExists},
		{"学生缺少院系", dto.RegisterRequest{Name: "x", Email: "a@campus.edu", Password: "password123", Role: model.RoleStudent}, ErrDepartmentRequired},
		{"院系不存在", dto.RegisterRequest{Name: "x", Email: "b@campus.edu", Password: "password123", DepartmentCode: "NOPE"}, ErrDepartmentNotFound},
		{"院系已停用", dto.RegisterRequest{Name: "x", Email: "c@campus.edu", Password: "password123", DepartmentCode: "OLD"}, ErrDepartmentInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Auth.Register(context.Background(), &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
}

func TestAuthService_Register_ManagerWithoutDepartment(t *testing.T) {
	env := newTestEnv()

	resp, err := env.svc.Auth.Register(context.Background(), &dto.RegisterRequest{
		Name: "管理员", Email: "mgr@campus.edu", Password: "password123", Role: model.RoleManager,
	})
	if err != nil {
		t.Fatalf("Register 失败: %v", err)
	}
	if resp.User.Role != model.RoleManager || resp.User.Department != nil {
		t.Errorf("manager 不应有院系，实际=%+v", resp.User)
	}
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	registerStudent(t, env, "张三", "zs@campus.edu", "CS")

	resp, err := env.svc.Auth.Login(context.Background(), &dto.LoginRequest{Email: "zs@campus.edu", Password: "password123", ClientIP: "1.1.1.1"})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}
	claims, err := env.jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("AccessToken 无法解析: %v", err)
	}
	if claims.UserID != resp.User.ID || claims.Role != model.RoleStudent {
		t.Errorf("claims 不匹配: %+v", claims)
	}

	_, err = env.svc.Auth.Login(context.Background(), &dto.LoginRequest{Email: "zs@campus.edu", Password: "wrong-pass", ClientIP: "1.1.1.1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}

	_, err = env.svc.Auth.Login(context.Background(), &dto.LoginRequest{Email: "nobody@campus.edu", Password: "password123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("不存在的邮箱应返回 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestAuthService_Login_Lockout(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	registerStudent(t, env, "张三", "zs@campus.edu", "CS")
	ctx := context.Background()

	bad := &dto.LoginRequest{Email: "zs@campus.edu", Password: "wrong-pass", ClientIP: "1.1.1.1"}
	for i := 0; i < env.cfg.Auth.MaxLoginAttempts-1; i++ {
		if _, err := env.svc.Auth.Login(ctx, bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("第 %d 次失败应返回 ErrInvalidCredentials，实际: %v", i+1, err)
		}
	}
	if _, err := env.svc.Auth.Login(ctx, bad); !errors.Is(err, ErrLoginLocked) {
		t.Fatalf("达到阈值应锁定，实际: %v", err)
	}

	// 锁定后正确密码也被拒绝
	good := &dto.LoginRequest{Email: "zs@campus.edu", Password: "password123", ClientIP: "1.1.1.1"}
	if _, err := env.svc.Auth.Login(ctx, good); !errors.Is(err, ErrLoginLocked) {
		t.Errorf("锁定期间应拒绝登录，实际: %v", err)
	}

	// 锁定按 邮箱+IP 计算
	good.ClientIP = "2.2.2.2"
	if _, err := env.svc.Auth.Login(ctx, good); err != nil {
		t.Errorf("其他 IP 不应受影响: %v", err)
	}
}

func TestAuthService_RefreshRotation(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	tokens := registerStudent(t, env, "张三", "zs@campus.edu", "CS")
	ctx := context.Background()

	refreshed, err := env.svc.Auth.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Error("应签发新的 RefreshToken")
	}

	// 旧 RefreshToken 已作废
	if _, err := env.svc.Auth.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("旧 RefreshToken 应失效，实际: %v", err)
	}

	// AccessToken 不能用于刷新
	if _, err := env.svc.Auth.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: tokens.AccessToken}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("AccessToken 不应用于刷新，实际: %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	tokens := registerStudent(t, env, "张三", "zs@campus.edu", "CS")
	ctx := context.Background()

	claims, _ := env.jwtMgr.ParseToken(tokens.AccessToken)
	if revoked, _ := env.svc.Auth.IsRevoked(ctx, claims.ID); revoked {
		t.Fatal("新签发的 token 不应被注销")
	}
	if err := env.svc.Auth.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout 失败: %v", err)
	}
	if revoked, _ := env.svc.Auth.IsRevoked(ctx, claims.ID); !revoked {
		t.Error("Logout 后 token 应被注销")
	}
}

func TestAuthService_WithoutTokenStore(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	auth := NewAuthService(env.cfg, env.repo, env.jwtMgr, Deps{}, zap.NewNop())
	ctx := context.Background()

	if _, err := auth.Register(ctx, &dto.RegisterRequest{Name: "x", Email: "x@campus.edu", Password: "password123", DepartmentCode: "CS"}); err != nil {
		t.Fatalf("Register 失败: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, err := auth.Login(ctx, &dto.LoginRequest{Email: "x@campus.edu", Password: "bad-password"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Redis 不可用时不应锁定，实际: %v", err)
		}
	}
	if revoked, err := auth.IsRevoked(ctx, "any"); revoked || err != nil {
		t.Errorf("Redis 不可用时应放行，revoked=%v err=%v", revoked, err)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	tokens := registerStudent(t, env, "张三", "zs@campus.edu", "CS")
	ctx := context.Background()

	name := "  张小三 "
	dept := "ee"
	resp, err := env.svc.Auth.UpdateProfile(ctx, tokens.User.ID, &dto.UpdateProfileRequest{Name: &name, DepartmentCode: &dept})
	if err != nil {
		t.Fatalf("UpdateProfile 失败: %v", err)
	}
	if resp.Name != "张小三" {
		t.Errorf("期望 Name=张小三，实际=%s", resp.Name)
	}
	if resp.Department == nil || resp.Department.Code != "EE" {
		t.Errorf("期望院系 EE，实际=%+v", resp.Department)
	}

	// 头像类型校验
	_, err = env.svc.Auth.UpdateProfile(ctx, tokens.User.ID, &dto.UpdateProfileRequest{
		ProfileImage: &dto.ImageUpload{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hi")},
	})
	if !errors.Is(err, ErrImageType) {
		t.Errorf("期望 ErrImageType，实际: %v", err)
	}
}
