package models

// Service is one upstream WATHQ data product we proxy (commercial registration,
// deeds, attorney data, ...). The core treats it as an opaque keyed-fetch target.
type Service struct {
	Id              uint     `json:"id" gorm:"primaryKey"`
	Slug            string   `json:"slug" gorm:"not null;unique"`
	Name            string   `json:"name" gorm:"not null"`
	Endpoint        string   `json:"endpoint" gorm:"not null"` // upstream path template
	HTTPMethod      string   `json:"http_method" gorm:"size:10;default:GET"`
	CacheTTLSeconds int      `json:"cache_ttl_seconds"` // 0 => global default (3600)
	UnitPrice       *float64 `json:"unit_price"`        // optional cost per direct call
	Active          bool     `json:"active" gorm:"default:true"`
}
