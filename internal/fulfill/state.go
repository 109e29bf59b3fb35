package fulfill

// OrderState 单个订单处理状态机的状态
//
// Pending → Resolving → Downloading → Packaging → Uploading → Notifying
// → Recorded；任意状态出错进入 Failed。
//
// Recorded 与 Failed 为终态。Failed 的订单因为未进入已交付记录，下个
// 调度 pass 自动重试。
type OrderState int

const (
	StatePending OrderState = iota
	StateResolving
	StateDownloading
	StatePackaging
	StateUploading
	StateNotifying
	StateRecorded
	StateFailed
)

// String 返回状态名
func (s OrderState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateResolving:
		return "Resolving"
	case StateDownloading:
		return "Downloading"
	case StatePackaging:
		return "Packaging"
	case StateUploading:
		return "Uploading"
	case StateNotifying:
		return "Notifying"
	case StateRecorded:
		return "Recorded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
