// Copyright (C) 2024 NebulaStream Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package engine holds the diagnostic hook shared by every subsystem
// of the streaming execution core.
package engine

// Errorf is a global diagnostic function, settable during init() (or
// by a caller wiring up its own log sink), that every package in this
// module reports non-fatal diagnostics through. It stands in for a
// heavyweight logging framework the same way the teacher's vm.Errorf
// does (see vm/log.go): nil by default, a no-op until a caller sets
// one.
var Errorf func(f string, args ...any)

// Logf calls Errorf if one is set, and is a no-op otherwise. Every
// subsystem reports through Logf rather than calling Errorf directly
// so a nil hook never needs a nil-check at the call site.
func Logf(f string, args ...any) {
	if Errorf != nil {
		Errorf(f, args...)
	}
}
