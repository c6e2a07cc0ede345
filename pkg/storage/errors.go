package storage

import "errors"

var (
	ErrTooLarge        = errors.New("文件过大")
	ErrUnsupportedType = errors.New("不支持的文件类型")
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageExt 校验图片 Content-Type 并返回扩展名
func ImageExt(contentType string) (string, error) {
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}
