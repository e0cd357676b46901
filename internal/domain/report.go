package domain

// Категории файлов для статистики по типам.
const (
	TypeDocuments = "documents"
	TypeImages    = "images"
	TypeVideo     = "video"
	TypeAudio     = "audio"
	TypeOther     = "other"
)

// TypeBucket — одна корзина статистики по типам файлов. BarWidth
// пропорциональна максимальной корзине и лежит в диапазоне [0, 100].
type TypeBucket struct {
	Type     string `json:"type"`
	Count    int64  `json:"count"`
	BarWidth int    `json:"bar_width"`
}

type TypeBreakdown struct {
	Buckets    []TypeBucket `json:"buckets"`
	TotalFiles int64        `json:"total_files"`
}
