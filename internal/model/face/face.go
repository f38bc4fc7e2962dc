package face

import "github.com/zhouzirui/hotel-checkin/backend/internal/model/reservation"

// UnknownName 未匹配到已知身份时推理服务返回的保留名称
const UnknownName = "Unknown"

// Liveness 活体检测结论
type Liveness string

const (
	Live    Liveness = "Live"
	NotLive Liveness = "Not Live"
)

// Detection 单帧中检测到的一张人脸
type Detection struct {
	Name       string   `json:"name"`
	Email      string   `json:"email,omitempty"`
	Status     Liveness `json:"status"`
	BBox       [4]int   `json:"bbox"` // left, top, right, bottom，原始帧像素坐标
	Confidence float64  `json:"confidence,omitempty"`
}

// Known 是否匹配到了已知身份
func (d Detection) Known() bool {
	return d.Name != "" && d.Name != UnknownName
}

// Qualifies 是否可以计入确认计数（已知身份且活体）
func (d Detection) Qualifies() bool {
	return d.Known() && d.Status == Live
}

// Result 推送给客户端的单张人脸结果，确认后附带该来宾的预订列表
type Result struct {
	Detection
	Reservations []reservation.Reservation `json:"reservations,omitempty"`
}
