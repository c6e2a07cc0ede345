package service

import (
	"context"
	"errors"
	"testing"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
)

func TestAccessService_Require(t *testing.T) {
	env := newTestEnv()
	env.addStudent("s1", "Alice")
	env.addUser("a1", "Admin", model.RoleAdmin)
	ctx := context.Background()

	if role, err := env.svc.Access.Require(ctx, "s1"); err != nil || role != model.RoleStudent {
		t.Errorf("无角色限制时应放行，role=%s err=%v", role, err)
	}
	if _, err := env.svc.Access.Require(ctx, "s1", model.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("期望 ErrForbidden，实际: %v", err)
	}
	if _, err := env.svc.Access.Require(ctx, "a1", model.RoleManager, model.RoleAdmin); err != nil {
		t.Errorf("管理员应放行: %v", err)
	}
	if _, err := env.svc.Access.Require(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// 角色以数据库为准：降级后旧 Token 中的角色不再生效
func TestAccessService_UsesCurrentRole(t *testing.T) {
	env := newTestEnv()
	env.addUser("a1", "Root", model.RoleAdmin)
	env.addUser("a2", "Admin", model.RoleAdmin)
	ctx := context.Background()

	if _, err := env.svc.Admin.AssignRole(ctx, "a1", "a2", &dto.AssignRoleRequest{Role: model.RoleManager}); err != nil {
		t.Fatalf("AssignRole 失败: %v", err)
	}
	if _, err := env.svc.Access.Require(ctx, "a2", model.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("降级后应返回 ErrForbidden，实际: %v", err)
	}
}
