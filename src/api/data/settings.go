package data

import (
	"context"
	"sync"

	"github.com/stake-plus/filedao/src/api/types"
	"gorm.io/gorm"
)

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings loads all active settings from the database into cache
func LoadSettings(ctx context.Context, db *gorm.DB) error {
	var settings []types.Setting
	if err := db.WithContext(ctx).Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsCache = make(map[string]string, len(settings))
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}
	return nil
}

// GetSetting retrieves a setting value from cache (call LoadSettings first)
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// SettingOr returns the cached setting, or def when it is unset.
func SettingOr(name, def string) string {
	if v := GetSetting(name); v != "" {
		return v
	}
	return def
}
