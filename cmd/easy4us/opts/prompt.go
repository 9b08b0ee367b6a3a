// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package opts

import (
	"fmt"
	"io"
	"os"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"
)

// 🔑 PromptPassword reads a password from in without echo. It fails when in is
// not a terminal.
func PromptPassword(in *os.File, out io.Writer, username string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.Errorf("password is required: use --%s or %s_PASSWORD when not on a terminal", FlagPassword, EnvPrefix)
	}

	fmt.Fprintf(out, "Password for %s: ", username)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", errors.Errorf("reading password: %w", err)
	}
	if len(pw) == 0 {
		return "", errors.Errorf("password is required")
	}
	return string(pw), nil
}
