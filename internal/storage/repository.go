package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/micro-ha/imou-ptz/addon/internal/model"
)

var ErrNotFound = errors.New("not found")

func (r *Repository) ListRegistered(ctx context.Context) (map[model.ChannelKey]model.ChannelRegistered, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, channel_id, given_name, enabled, wait_after_wakeup_sec, created_at, updated_at
		FROM channels_registered`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[model.ChannelKey]model.ChannelRegistered{}
	for rows.Next() {
		var (
			row                  model.ChannelRegistered
			givenName            sql.NullString
			wait                 sql.NullInt64
			createdAt, updatedAt string
		)
		if err := rows.Scan(&row.DeviceID, &row.ChannelID, &givenName, &row.Enabled, &wait, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		row.GivenName = strPtr(givenName)
		row.WaitAfterWakeupSec = intPtr(wait)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			row.CreatedAt = ts.UTC()
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			row.UpdatedAt = ts.UTC()
		}
		result[model.ChannelKey{DeviceID: row.DeviceID, ChannelID: row.ChannelID}] = row
	}
	return result, rows.Err()
}

func (r *Repository) UpsertRegistered(ctx context.Context, key model.ChannelKey, givenName *string, enabled *bool, waitSec *int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	enabledValue := true
	if enabled != nil {
		enabledValue = *enabled
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channels_registered (device_id, channel_id, given_name, enabled, wait_after_wakeup_sec, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, channel_id) DO UPDATE SET
			given_name=COALESCE(excluded.given_name, channels_registered.given_name),
			enabled=excluded.enabled,
			wait_after_wakeup_sec=COALESCE(excluded.wait_after_wakeup_sec, channels_registered.wait_after_wakeup_sec),
			updated_at=excluded.updated_at`,
		key.DeviceID, key.ChannelID, fromStringPtr(givenName), enabledValue, fromIntPtr(waitSec), now, now)
	return err
}

func (r *Repository) PatchRegistered(ctx context.Context, key model.ChannelKey, in model.PatchInput) error {
	registered, err := r.ListRegistered(ctx)
	if err != nil {
		return err
	}
	row, ok := registered[key]
	if !ok {
		// first patch registers the channel
		return r.UpsertRegistered(ctx, key, in.Name, in.Enabled, in.WaitAfterWakeupSec)
	}
	if in.Name != nil {
		row.GivenName = in.Name
	}
	if in.Enabled != nil {
		row.Enabled = *in.Enabled
	}
	if in.WaitAfterWakeupSec != nil {
		row.WaitAfterWakeupSec = in.WaitAfterWakeupSec
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = r.db.ExecContext(ctx, `
		UPDATE channels_registered
		SET given_name=?, enabled=?, wait_after_wakeup_sec=?, updated_at=?
		WHERE device_id=? AND channel_id=?`,
		fromStringPtr(row.GivenName), row.Enabled, fromIntPtr(row.WaitAfterWakeupSec), now,
		key.DeviceID, key.ChannelID)
	return err
}

func (r *Repository) LoadAllStates(ctx context.Context) (map[model.ChannelKey]model.ChannelState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, channel_id, status, device_name, channel_name, device_model, sleepable, updated_at
		FROM channels_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[model.ChannelKey]model.ChannelState{}
	for rows.Next() {
		var (
			state     model.ChannelState
			updatedAt string
		)
		if err := rows.Scan(&state.DeviceID, &state.ChannelID, &state.Status, &state.DeviceName,
			&state.ChannelName, &state.DeviceModel, &state.Sleepable, &updatedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			state.UpdatedAt = ts.UTC()
		}
		result[model.ChannelKey{DeviceID: state.DeviceID, ChannelID: state.ChannelID}] = state
	}
	return result, rows.Err()
}

func (r *Repository) UpsertStates(ctx context.Context, states []model.ChannelState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO channels_state (device_id, channel_id, status, device_name, channel_name, device_model, sleepable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, channel_id) DO UPDATE SET
			status=excluded.status,
			device_name=excluded.device_name,
			channel_name=excluded.channel_name,
			device_model=excluded.device_model,
			sleepable=excluded.sleepable,
			updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, state := range states {
		if _, err := stmt.ExecContext(
			ctx,
			state.DeviceID,
			state.ChannelID,
			state.Status,
			state.DeviceName,
			state.ChannelName,
			state.DeviceModel,
			state.Sleepable,
			state.UpdatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
