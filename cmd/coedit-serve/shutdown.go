// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
)

type Shutdowner interface {
	Shutdown(ctx context.Context) error
}
