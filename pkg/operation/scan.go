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

package operation

import (
	"context"

	"github.com/walteh/easy4us/pkg/log"
	"github.com/walteh/easy4us/pkg/report"
)

var _ Operation = (*ScanOperation)(nil)

// 🔎 ScanOperation walks the source tree and reports what a decode run would do
// without logging in or touching the destination.
type ScanOperation struct {
	BaseOperation
}

// 🏭 NewScanOperation builds a dry run; opts.Client and opts.Pacer are ignored.
func NewScanOperation(opts Options) (*ScanOperation, error) {
	base, err := newBaseOperation(opts)
	if err != nil {
		return nil, err
	}
	return &ScanOperation{BaseOperation: base}, nil
}

func (op *ScanOperation) Execute(ctx context.Context) (*report.Report, error) {
	if err := op.checkSource(); err != nil {
		return nil, err
	}

	rep := op.newReport()
	rep.DryRun = true

	err := op.classifier.Walk(ctx, op.cfg.Source, func(ctx context.Context, relDir string) error {
		entries, err := op.classifier.ScanDir(ctx, op.cfg.Source, relDir)
		if err != nil {
			op.console.Warningf("could not read %s: %v", op.sourcePath(relDir), err)
			return nil
		}

		encoded, plain := splitEntries(entries)
		rep.FilesSeen += len(entries)
		rep.EncodedFound += len(encoded)
		rep.Copied += len(plain)

		op.console.StartDirOperation(ctx, log.DirOperation{
			Path:        relDir,
			Destination: op.status.Path(relDir),
			Encoded:     len(encoded),
			Plain:       len(plain),
		})
		defer op.console.EndDirOperation(ctx)

		pending := 0
		for _, e := range encoded {
			exists := false
			if !op.cfg.Overwrite {
				exists, _ = op.status.FileExists(ctx, e.RelPath)
			}
			if exists {
				rep.Skipped++
				op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: "exists", IsSkipped: true})
				continue
			}
			pending++
			op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: "would decode"})
		}
		rep.Processed += pending
		rep.Batches += BatchCount(pending, op.cfg.BatchSize)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return nil, err
	}
	rep.Interrupted = ctx.Err() != nil
	rep.Finish()
	return rep, nil
}
