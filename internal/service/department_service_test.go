package service

import (
	"context"
	"errors"
	"testing"

	"campusconnect/backend/internal/dto"
)

// ── Create 测试 ──

func TestDepartmentService_Create_Success(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.Department.Create(context.Background(), &dto.CreateDepartmentRequest{Code: " cs ", Name: " 计算机学院 "})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.Code != "CS" {
		t.Errorf("期望Code=CS，实际=%s", result.Code)
	}
	if result.Name != "计算机学院" {
		t.Errorf("期望Name=计算机学院，实际=%s", result.Name)
	}
	if !result.IsActive {
		t.Error("期望默认IsActive=true")
	}
}

func TestDepartmentService_Create_DuplicateCode(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)

	_, err := env.svc.Department.Create(context.Background(), &dto.CreateDepartmentRequest{Code: "cs", Name: "另一个计算机"})
	if !errors.Is(err, ErrDepartmentCodeExists) {
		t.Errorf("期望 ErrDepartmentCodeExists，实际: %v", err)
	}
}

// ── List 测试 ──

func TestDepartmentService_List(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	ctx := context.Background()

	active, err := env.svc.Department.List(ctx, &dto.DepartmentListRequest{})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("默认只返回启用院系，期望 2，实际=%d", len(active))
	}

	all, _ := env.svc.Department.List(ctx, &dto.DepartmentListRequest{IncludeInactive: true})
	if len(all) != 3 {
		t.Errorf("include_inactive 应返回全部院系，期望 3，实际=%d", len(all))
	}
}

// ── Update 测试 ──

func TestDepartmentService_Update(t *testing.T) {
	env := newTestEnv()
	seedDepartments(env)
	ctx := context.Background()

	name := "计算机科学与技术"
	inactive := false
	result, err := env.svc.Department.Update(ctx, "dept-cs", &dto.UpdateDepartmentRequest{Name: &name, IsActive: &inactive})
	if err != nil {
		t.Fatalf("Update 失败: %v", err)
	}
	if result.Name != name || result.IsActive {
		t.Errorf("更新结果不符合预期: %+v", result)
	}

	// 停用后新注册不能选择该院系
	_, err = env.svc.Auth.Register(ctx, &dto.RegisterRequest{Name: "x", Email: "x@campus.edu", Password: "password123", DepartmentCode: "CS"})
	if !errors.Is(err, ErrDepartmentInactive) {
		t.Errorf("期望 ErrDepartmentInactive，实际: %v", err)
	}

	if _, err := env.svc.Department.Update(ctx, "missing", &dto.UpdateDepartmentRequest{Name: &name}); !errors.Is(err, ErrDepartmentNotFound) {
		t.Errorf("期望 ErrDepartmentNotFound，实际: %v", err)
	}
}
