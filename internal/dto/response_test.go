package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"未传取默认值", 0, 20},
		{"正常值", 35, 35},
		{"恰好上限", 100, 100},
		{"超过上限截断", 500, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, (&OffsetRequest{Limit: tt.limit}).GetLimit())
			assert.Equal(t, tt.want, (&NotificationListRequest{Limit: tt.limit}).GetLimit())
			assert.Equal(t, tt.want, (&PaginationRequest{PageSize: tt.limit}).GetPageSize())
		})
	}

	// 消息列表默认 50 条
	assert.Equal(t, 50, (&MessageListRequest{}).GetLimit())
	assert.Equal(t, MaxLimit, (&MessageListRequest{Limit: 101}).GetLimit())
}

func TestOffsetRequest_GetPage(t *testing.T) {
	assert.Equal(t, 1, (&OffsetRequest{}).GetPage())
	assert.Equal(t, 3, (&OffsetRequest{Limit: 20, Offset: 40}).GetPage())
	// limit 截断后按 100 推算页码
	assert.Equal(t, 2, (&OffsetRequest{Limit: 500, Offset: 100}).GetPage())
}
