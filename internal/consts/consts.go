package consts

import (
	"time"
)

// Core timing defaults. All of these are overridable through configuration;
// the values here match the deployed defaults.
const (
	DefaultCacheTTL     = time.Hour
	DefaultRateWindow   = 10 * time.Second
	DefaultWarnCooldown = time.Minute
	DefaultBotPermsTTL  = 5 * time.Minute

	DefaultRateThreshold = 6

	DefaultCacheSize     = 10000
	DefaultGbanCacheSize = 1000
)

// Setting names shared by the cache and the durable store.
const (
	SettingEditDelay  = "edit_delay"
	SettingMediaDelay = "media_delay"
	SettingSlang      = "slang_enabled"
	SettingPretender  = "pretender_enabled"
	SettingLanguage   = "language"
)

// Redis key prefixes for the durable store.
const (
	RedisSettingsKey  = "settings:"
	RedisAuthKey      = "auth:"
	RedisGbanKey      = "gban"
	RedisAdminLogKey  = "adminlog:"
	RedisGroupsKey    = "groups:active"
	RedisUsersKey     = "users:known"
	RedisGroupMetaKey = "group:"
)

// Admin-log retention per chat, newest first.
const AdminLogLimit = 1000
