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

package remote

import "gitlab.com/tozd/go/errors"

var (
	// ErrAuthentication means the service refused the credentials. It ends the run.
	ErrAuthentication = errors.Base("authentication failed")

	// ErrFormDiscovery means an expected form or field was not found on a page.
	ErrFormDiscovery = errors.Base("form not found")

	// ErrTransport means a request could not be completed.
	ErrTransport = errors.Base("transport failure")

	// ErrArchiveFormat means the downloaded payload was not a usable archive.
	ErrArchiveFormat = errors.Base("invalid archive")
)
