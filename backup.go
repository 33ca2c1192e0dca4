// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"errors"
	"fmt"
	"os"
)

// prepareBackupSlot rotates container.bak, container.bak.1, ... so backupPath is free.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if _, err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		_, err := renameIfExists(backupPath, backupPath+".1")
		return err
	}
}

// renameIfExists renames source to destination when source exists and reports whether it moved.
func renameIfExists(from string, to string) (bool, error) {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return false, err
	}

	if err := os.Rename(from, to); err != nil {
		return false, fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return true, nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
