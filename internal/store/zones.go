package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrZoneNotFound reports a lookup for an unconfigured zone.
var ErrZoneNotFound = errors.New("zone not found")

// ZoneSettings are the occupancy alert thresholds for a counted zone.
type ZoneSettings struct {
	Zone                 string    `json:"zone"`
	Capacity             int       `json:"capacity"`
	WarningFraction      float64   `json:"warning_fraction"`
	CriticalFraction     float64   `json:"critical_fraction"`
	AlertCooldownSeconds int       `json:"alert_cooldown_seconds"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Validate checks the thresholds make sense together.
func (z *ZoneSettings) Validate() error {
	if z.Zone == "" {
		return fmt.Errorf("zone name is required")
	}
	if z.Capacity < 1 {
		return fmt.Errorf("capacity must be >= 1, got %d", z.Capacity)
	}
	if z.WarningFraction <= 0 || z.WarningFraction > 1 {
		return fmt.Errorf("warning_fraction %v outside (0, 1]", z.WarningFraction)
	}
	if z.CriticalFraction <= 0 || z.CriticalFraction > 1 {
		return fmt.Errorf("critical_fraction %v outside (0, 1]", z.CriticalFraction)
	}
	if z.CriticalFraction < z.WarningFraction {
		return fmt.Errorf("critical_fraction %v below warning_fraction %v", z.CriticalFraction, z.WarningFraction)
	}
	if z.AlertCooldownSeconds < 0 {
		return fmt.Errorf("alert_cooldown_seconds must be >= 0, got %d", z.AlertCooldownSeconds)
	}
	return nil
}

// GetZoneSettings loads one zone's thresholds.
func GetZoneSettings(db *sql.DB, zone string) (*ZoneSettings, error) {
	row := db.QueryRow(`
		SELECT zone, capacity, warning_fraction, critical_fraction, alert_cooldown_seconds, updated_unix_nanos
		FROM zone_settings WHERE zone = ?
	`, zone)

	var z ZoneSettings
	var updated int64
	err := row.Scan(&z.Zone, &z.Capacity, &z.WarningFraction, &z.CriticalFraction, &z.AlertCooldownSeconds, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	if err != nil {
		return nil, fmt.Errorf("get zone settings %s: %w", zone, err)
	}
	z.UpdatedAt = time.Unix(0, updated)
	return &z, nil
}

// ListZoneSettings returns every configured zone, ordered by name.
func ListZoneSettings(db *sql.DB) ([]*ZoneSettings, error) {
	rows, err := db.Query(`
		SELECT zone, capacity, warning_fraction, critical_fraction, alert_cooldown_seconds, updated_unix_nanos
		FROM zone_settings ORDER BY zone ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list zone settings: %w", err)
	}
	defer rows.Close()

	var out []*ZoneSettings
	for rows.Next() {
		var z ZoneSettings
		var updated int64
		if err := rows.Scan(&z.Zone, &z.Capacity, &z.WarningFraction, &z.CriticalFraction, &z.AlertCooldownSeconds, &updated); err != nil {
			return nil, fmt.Errorf("scan zone settings: %w", err)
		}
		z.UpdatedAt = time.Unix(0, updated)
		out = append(out, &z)
	}
	return out, rows.Err()
}

// UpsertZoneSettings writes a zone's thresholds and appends a history entry
// for every field that changed. The write and its audit trail commit
// together.
func UpsertZoneSettings(db *sql.DB, z *ZoneSettings, at time.Time) error {
	if err := z.Validate(); err != nil {
		return fmt.Errorf("zone settings: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin zone settings update: %w", err)
	}
	defer tx.Rollback()

	prev, err := zoneSettingsTx(tx, z.Zone)
	if err != nil && !errors.Is(err, ErrZoneNotFound) {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO zone_settings (zone, capacity, warning_fraction, critical_fraction, alert_cooldown_seconds, updated_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(zone) DO UPDATE SET
			capacity = excluded.capacity,
			warning_fraction = excluded.warning_fraction,
			critical_fraction = excluded.critical_fraction,
			alert_cooldown_seconds = excluded.alert_cooldown_seconds,
			updated_unix_nanos = excluded.updated_unix_nanos
	`, z.Zone, z.Capacity, z.WarningFraction, z.CriticalFraction, z.AlertCooldownSeconds, at.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert zone settings %s: %w", z.Zone, err)
	}

	for _, ch := range diffZoneSettings(prev, z) {
		_, err = tx.Exec(`
			INSERT INTO settings_history (zone, field, old_value, new_value, changed_unix_nanos)
			VALUES (?, ?, ?, ?, ?)
		`, z.Zone, ch.field, ch.old, ch.new, at.UnixNano())
		if err != nil {
			return fmt.Errorf("append settings history for %s.%s: %w", z.Zone, ch.field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit zone settings update: %w", err)
	}
	return nil
}

func zoneSettingsTx(tx *sql.Tx, zone string) (*ZoneSettings, error) {
	row := tx.QueryRow(`
		SELECT zone, capacity, warning_fraction, critical_fraction, alert_cooldown_seconds, updated_unix_nanos
		FROM zone_settings WHERE zone = ?
	`, zone)

	var z ZoneSettings
	var updated int64
	err := row.Scan(&z.Zone, &z.Capacity, &z.WarningFraction, &z.CriticalFraction, &z.AlertCooldownSeconds, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	if err != nil {
		return nil, fmt.Errorf("get zone settings %s: %w", zone, err)
	}
	z.UpdatedAt = time.Unix(0, updated)
	return &z, nil
}

type settingsChange struct {
	field string
	old   interface{} // nil for a new zone
	new   string
}

// diffZoneSettings lists the fields that differ between prev (nil for a new
// zone) and next. A new zone records every field with a nil old value.
func diffZoneSettings(prev, next *ZoneSettings) []settingsChange {
	fields := []struct {
		name     string
		oldValue string
		newValue string
	}{
		{"capacity", prevInt(prev, func(z *ZoneSettings) int { return z.Capacity }), strconv.Itoa(next.Capacity)},
		{"warning_fraction", prevFloat(prev, func(z *ZoneSettings) float64 { return z.WarningFraction }), formatFloat(next.WarningFraction)},
		{"critical_fraction", prevFloat(prev, func(z *ZoneSettings) float64 { return z.CriticalFraction }), formatFloat(next.CriticalFraction)},
		{"alert_cooldown_seconds", prevInt(prev, func(z *ZoneSettings) int { return z.AlertCooldownSeconds }), strconv.Itoa(next.AlertCooldownSeconds)},
	}

	var out []settingsChange
	for _, f := range fields {
		switch {
		case prev == nil:
			out = append(out, settingsChange{field: f.name, old: nil, new: f.newValue})
		case f.oldValue != f.newValue:
			out = append(out, settingsChange{field: f.name, old: f.oldValue, new: f.newValue})
		}
	}
	return out
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func prevInt(z *ZoneSettings, get func(*ZoneSettings) int) string {
	if z == nil {
		return ""
	}
	return strconv.Itoa(get(z))
}

func prevFloat(z *ZoneSettings, get func(*ZoneSettings) float64) string {
	if z == nil {
		return ""
	}
	return formatFloat(get(z))
}

// SettingsHistoryEntry is one audited field change.
type SettingsHistoryEntry struct {
	ID        int64     `json:"id"`
	Zone      string    `json:"zone"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
}

// SettingsHistory returns a zone's change log, newest first.
func SettingsHistory(db *sql.DB, zone string, limit int) ([]*SettingsHistoryEntry, error) {
	rows, err := db.Query(`
		SELECT id, zone, field, old_value, new_value, changed_unix_nanos
		FROM settings_history
		WHERE zone = ?
		ORDER BY changed_unix_nanos DESC, id DESC
		LIMIT ?
	`, zone, limit)
	if err != nil {
		return nil, fmt.Errorf("query settings history for %s: %w", zone, err)
	}
	defer rows.Close()

	var out []*SettingsHistoryEntry
	for rows.Next() {
		var e SettingsHistoryEntry
		var old sql.NullString
		var changed int64
		if err := rows.Scan(&e.ID, &e.Zone, &e.Field, &old, &e.NewValue, &changed); err != nil {
			return nil, fmt.Errorf("scan settings history: %w", err)
		}
		if old.Valid {
			e.OldValue = &old.String
		}
		e.ChangedAt = time.Unix(0, changed)
		out = append(out, &e)
	}
	return out, rows.Err()
}
