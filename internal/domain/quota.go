package domain

// UsageSummary — сводка использования хранилища для отображения клиенту.
// Percent всегда в диапазоне [0, 100]: при превышении квоты (что временно
// возможно) значение обрезается, для безлимитного тарифа всегда 0.
type UsageSummary struct {
	QuotaLimitMb   *int64  `json:"quota_limit_mb"`
	UsedBytes      int64   `json:"used_bytes"`
	UsedMb         float64 `json:"used_mb"`
	AvailableBytes *int64  `json:"available_bytes"`
	Percent        float64 `json:"percent"`
	UsedHuman      string  `json:"used_human"`
}
