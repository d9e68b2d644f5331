package storage

func (s *SQLiteStore) GetSettings() *Settings {
	row := s.db.QueryRow(`SELECT max_allowed_rules, singbox_add_clash_modes, managed_prefix,
		clash_new_field_name, cache_ttl, refresh_interval, fetch_timeout
		FROM settings WHERE id = 1`)

	settings := &Settings{}
	var clashModes, newFieldName int
	err := row.Scan(
		&settings.MaxAllowedRules, &clashModes, &settings.ManagedPrefix,
		&newFieldName, &settings.CacheTTL, &settings.RefreshInterval, &settings.FetchTimeout,
	)
	if err != nil {
		return DefaultSettings()
	}
	settings.SingBoxAddClashModes = clashModes != 0
	settings.ClashNewFieldName = newFieldName != 0
	return settings
}

func (s *SQLiteStore) UpdateSettings(settings *Settings) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (id,
		max_allowed_rules, singbox_add_clash_modes, managed_prefix,
		clash_new_field_name, cache_ttl, refresh_interval, fetch_timeout)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		settings.MaxAllowedRules, boolToInt(settings.SingBoxAddClashModes), settings.ManagedPrefix,
		boolToInt(settings.ClashNewFieldName), settings.CacheTTL, settings.RefreshInterval, settings.FetchTimeout)
	return err
}
