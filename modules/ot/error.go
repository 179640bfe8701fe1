// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ot

import "errors"

var (
	// ErrPositionOutOfRange reports an insert or delete whose effective
	// position falls outside the content it is applied to. Well-formed
	// operation lists never trigger it; a hit means the caller mixed
	// operations with the wrong base.
	ErrPositionOutOfRange = errors.New("ot: position out of range")
)
