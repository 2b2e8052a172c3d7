// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

//go:build !darwin

package badgesync

// platformBadgeSetter returns nil on platforms without a native badge
// hook; the command and count-file setters still apply.
func platformBadgeSetter() BadgeSetter {
	return nil
}
