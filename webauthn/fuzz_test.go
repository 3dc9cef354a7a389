/*
 * Teleport
 * Copyright (C) 2023  Gravitational, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package webauthn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustwing/webauthn/protocol"
)

func FuzzDecodeClientData(f *testing.F) {
	f.Add([]byte(`{"type":"webauthn.create","challenge":"AAAA","origin":"https://example.com"}`))
	f.Fuzz(func(t *testing.T, body []byte) {
		require.NotPanics(t, func() {
			protocol.DecodeClientData(body)
		})
	})
}

func FuzzDecodeAuthenticatorData(f *testing.F) {
	f.Fuzz(func(t *testing.T, body []byte) {
		require.NotPanics(t, func() {
			protocol.DecodeAuthenticatorData(body)
		})
	})
}

func FuzzDecodeAttestationObject(f *testing.F) {
	f.Fuzz(func(t *testing.T, body []byte) {
		require.NotPanics(t, func() {
			protocol.DecodeAttestationObject(body)
		})
	})
}
