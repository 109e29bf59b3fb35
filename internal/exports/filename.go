package exports

import (
	"strings"
)

// fixMarker 修正重导出文件的名称标记
// 带此标记的文件是人工修正后的重导出，使用独立的追踪 key
const fixMarker = "_fix"

// IsFixExport 判断文件是否带修正标记（扩展名之前以 _fix 结尾）
func IsFixExport(fileName string) bool {
	return stem(fileName) != baseStem(fileName)
}

// BaseExportName 返回修正文件对应的原始文件名
// 非修正文件返回自身
func BaseExportName(fileName string) string {
	s := stem(fileName)
	base := baseStem(fileName)
	if s == base {
		return fileName
	}
	return base + ext(fileName)
}

func stem(fileName string) string {
	return strings.TrimSuffix(fileName, ext(fileName))
}

func baseStem(fileName string) string {
	return strings.TrimSuffix(stem(fileName), fixMarker)
}

func ext(fileName string) string {
	if idx := strings.LastIndex(fileName, "."); idx >= 0 {
		return fileName[idx:]
	}
	return ""
}
