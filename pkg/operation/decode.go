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

	"github.com/rs/zerolog"
	"github.com/walteh/easy4us/pkg/classify"
	"github.com/walteh/easy4us/pkg/log"
	"github.com/walteh/easy4us/pkg/remote"
	"github.com/walteh/easy4us/pkg/report"
	"github.com/walteh/easy4us/pkg/status"
	"gitlab.com/tozd/go/errors"
)

var _ Operation = (*DecodeOperation)(nil)

// 🔓 DecodeOperation mirrors the source tree into the destination, sending
// encoded files to the decoder service in batches and copying the rest.
type DecodeOperation struct {
	BaseOperation
	client remote.Client
	pacer  Pacer

	rep       *report.Report
	processed int
}

// 🏭 NewDecodeOperation validates opts and builds a decode run.
func NewDecodeOperation(opts Options) (*DecodeOperation, error) {
	base, err := newBaseOperation(opts)
	if err != nil {
		return nil, err
	}
	if opts.Client == nil {
		return nil, errors.Errorf("client is required")
	}
	pacer := opts.Pacer
	if pacer == nil {
		pacer = SleepPacer{}
	}
	return &DecodeOperation{
		BaseOperation: base,
		client:        opts.Client,
		pacer:         pacer,
	}, nil
}

// 🚀 Execute runs the decode. Errors are returned only when nothing could be
// attempted (bad source, failed login); everything after that is recorded in the
// report and the run carries on. Cancelling ctx stops new batches from starting.
func (op *DecodeOperation) Execute(ctx context.Context) (*report.Report, error) {
	logger := zerolog.Ctx(ctx)
	defer func() {
		if err := op.client.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing decoder session")
		}
	}()

	if err := op.checkSource(); err != nil {
		return nil, err
	}

	op.console.Infof("logging in as %s", op.cfg.Username)
	if err := op.client.Login(ctx, op.cfg.Username, op.cfg.Password); err != nil {
		return nil, errors.Errorf("logging in: %w", err)
	}
	logger.Info().Str("user", op.cfg.Username).Msg("logged in")

	// leftovers from an earlier run would end up in the first download
	if err := op.client.ClearQueue(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not clear stale queue")
	}

	total, err := op.classifier.CountEncoded(ctx, op.cfg.Source)
	if err != nil {
		logger.Warn().Err(err).Msg("could not count encoded files, progress will be approximate")
		total = 0
	}

	op.rep = op.newReport()
	op.processed = 0
	op.status.StartOperation(ctx, total)

	err = op.classifier.Walk(ctx, op.cfg.Source, func(ctx context.Context, relDir string) error {
		op.processDir(ctx, relDir)
		if ctx.Err() != nil {
			op.rep.Interrupted = true
			return classify.SkipRest
		}
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			return op.finish(ctx), errors.Errorf("walking source: %w", err)
		}
		op.rep.Interrupted = true
	}

	return op.finish(ctx), nil
}

func (op *DecodeOperation) finish(ctx context.Context) *report.Report {
	op.status.FinishOperation(ctx)
	op.rep.Finish()
	return op.rep
}

func (op *DecodeOperation) processDir(ctx context.Context, relDir string) {
	logger := zerolog.Ctx(ctx).With().Str("dir", relDir).Logger()
	ctx = logger.WithContext(ctx)

	entries, err := op.classifier.ScanDir(ctx, op.cfg.Source, relDir)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping unreadable directory")
		op.console.Warningf("could not read %s: %v", op.sourcePath(relDir), err)
		return
	}

	encoded, plain := splitEntries(entries)
	op.rep.FilesSeen += len(entries)
	op.rep.EncodedFound += len(encoded)

	op.console.StartDirOperation(ctx, log.DirOperation{
		Path:        relDir,
		Destination: op.status.Path(relDir),
		Encoded:     len(encoded),
		Plain:       len(plain),
	})
	defer op.console.EndDirOperation(ctx)

	if err := op.status.CreateDir(ctx, relDir); err != nil {
		logger.Error().Err(err).Msg("could not create destination directory")
		for _, e := range plain {
			op.copyFailed(ctx, e, err)
		}
		for _, e := range encoded {
			op.notDecoded(ctx, e, "destination unavailable")
		}
		op.advance(ctx, len(encoded))
		return
	}

	for _, e := range plain {
		op.copyPlain(ctx, e)
	}

	pending := make([]classify.FileEntry, 0, len(encoded))
	for _, e := range encoded {
		if !op.cfg.Overwrite {
			exists, err := op.status.FileExists(ctx, e.RelPath)
			if err != nil {
				logger.Debug().Err(err).Str("file", e.RelPath).Msg("checking destination")
			}
			if exists {
				op.skip(ctx, e)
				continue
			}
		}
		pending = append(pending, e)
	}
	op.advance(ctx, len(encoded)-len(pending))

	batches := Partition(pending, op.cfg.BatchSize)
	for i, b := range batches {
		if op.rep.Batches > 0 {
			if err := op.pacer.Wait(ctx, op.cfg.BatchDelay.Std()); err != nil {
				op.abandon(ctx, batches[i:])
				return
			}
		}
		if ctx.Err() != nil {
			op.abandon(ctx, batches[i:])
			return
		}

		b.SourceDir = op.sourcePath(relDir)
		b.DestDir = op.status.Path(relDir)

		// an upload in flight cannot be taken back, so the batch finishes on its own
		op.runBatch(context.WithoutCancel(ctx), b)
		op.advance(ctx, len(b.Files))
	}
}

// runBatch uploads b, downloads the decoded bundle when anything succeeded and
// always empties the remote queue afterwards. A file counts as decoded only when
// the service reported it and it was extracted into the destination, even when
// the download failed part way.
func (op *DecodeOperation) runBatch(ctx context.Context, b Batch) {
	op.rep.Batches++
	op.rep.Processed += len(b.Files)

	logger := zerolog.Ctx(ctx).With().Int("batch", b.Index).Int("batches", b.Total).Logger()
	ctx = logger.WithContext(ctx)

	op.console.StartBatch(ctx, log.BatchOperation{Index: b.Index, Total: b.Total, Files: len(b.Files)})

	decoded := map[string]bool{}
	rejected := map[string]bool{}
	reason := ""

	res, err := op.client.Upload(ctx, b.SourceDir, b.Names())
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("upload failed")
		reason = "upload failed"
	case !res.HasSuccess():
		logger.Warn().Strs("files", res.Failed).Msg("service decoded nothing in this batch")
		reason = "not decoded by service"
	default:
		for _, name := range res.Failed {
			rejected[name] = true
		}
		extracted, err := op.client.DownloadDecoded(ctx, b.DestDir)
		reason = "missing from download"
		if err != nil {
			logger.Error().Err(err).Strs("extracted", extracted).Msg("download failed")
			reason = "download failed"
		}
		got := make(map[string]bool, len(extracted))
		for _, name := range extracted {
			got[name] = true
		}
		succeeded := res.SucceededSet()
		for _, f := range b.Files {
			switch {
			case succeeded[f.Name] && got[f.Name]:
				decoded[f.Name] = true
			case got[f.Name]:
				// the service sent a file it never confirmed
				op.discard(ctx, f)
			}
		}
	}

	if err := op.client.ClearQueue(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not clear queue")
	}

	for _, f := range b.Files {
		switch {
		case decoded[f.Name]:
			op.decoded(ctx, f)
		case rejected[f.Name]:
			op.notDecoded(ctx, f, "rejected by service")
		default:
			op.notDecoded(ctx, f, reason)
		}
	}
}

// discard removes a file that landed in the destination without being counted as decoded.
func (op *DecodeOperation) discard(ctx context.Context, f classify.FileEntry) {
	if err := op.status.RemoveFile(ctx, f.RelPath); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", f.RelPath).Msg("could not remove unconfirmed download")
	}
}

// abandon records every file of the remaining batches as not decoded.
func (op *DecodeOperation) abandon(ctx context.Context, batches []Batch) {
	op.rep.Interrupted = true
	for _, b := range batches {
		for _, f := range b.Files {
			op.notDecoded(ctx, f, "interrupted")
		}
		op.advance(ctx, len(b.Files))
	}
	zerolog.Ctx(ctx).Warn().Int("batches", len(batches)).Msg("run interrupted, remaining batches not started")
}

func (op *DecodeOperation) advance(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	op.processed += n
	op.status.UpdateProgress(ctx, op.processed)
}

func (op *DecodeOperation) copyPlain(ctx context.Context, e classify.FileEntry) {
	if err := op.status.CopyFile(ctx, op.sourcePath(e.RelPath), e.RelPath); err != nil {
		op.copyFailed(ctx, e, err)
		return
	}
	op.rep.Copied++
	op.status.TrackFile(ctx, e.RelPath, status.FileInfo{Path: e.RelPath, Status: status.StatusCopied})
	op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: "copied", IsCopied: true})
}

func (op *DecodeOperation) copyFailed(ctx context.Context, e classify.FileEntry, err error) {
	zerolog.Ctx(ctx).Warn().Err(err).Str("file", e.RelPath).Msg("copy failed")
	op.rep.AddCopyFailed(op.sourcePath(e.RelPath))
	op.status.TrackFile(ctx, e.RelPath, status.FileInfo{Path: e.RelPath, Status: status.StatusFailed, Error: err})
	op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: "copy failed", IsFailed: true})
}

func (op *DecodeOperation) skip(ctx context.Context, e classify.FileEntry) {
	op.rep.Skipped++
	op.status.TrackFile(ctx, e.RelPath, status.FileInfo{Path: e.RelPath, Status: status.StatusSkipped})
	op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: "exists", IsSkipped: true})
}

func (op *DecodeOperation) decoded(ctx context.Context, e classify.FileEntry) {
	op.rep.Decoded++
	op.status.TrackFile(ctx, e.RelPath, status.FileInfo{Path: e.RelPath, Status: status.StatusDecoded})
	op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: "decoded", IsDecoded: true})
}

func (op *DecodeOperation) notDecoded(ctx context.Context, e classify.FileEntry, reason string) {
	op.rep.AddNotDecoded(op.sourcePath(e.RelPath))
	op.status.TrackFile(ctx, e.RelPath, status.FileInfo{
		Path:   e.RelPath,
		Status: status.StatusFailed,
		Error:  errors.Errorf("not decoded: %s", reason),
	})
	op.console.LogFileOperation(ctx, log.FileOperation{Path: e.RelPath, Kind: e.Kind.String(), Status: reason, IsFailed: true})
}
