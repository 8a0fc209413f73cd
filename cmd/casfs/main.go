// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import "os"

func main() {
	os.Exit(Execute())
}
