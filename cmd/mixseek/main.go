// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// mixseek runs competing multi-agent teams against one prompt and
// reports the best submission.
package main

import "os"

func main() {
	os.Exit(Execute())
}
