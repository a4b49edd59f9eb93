package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TransferOptions tunes whole-archive transfers.
type TransferOptions struct {
	// RateLimitBytesPerSec throttles transfer throughput so bulk archive
	// moves do not starve a live tracking run of disk or network bandwidth.
	// 0 means unlimited.
	RateLimitBytesPerSec int64

	// Concurrency bounds parallel downloads in FetchAll. Defaults to 4.
	Concurrency int
}

func (o TransferOptions) limiter() *rate.Limiter {
	if o.RateLimitBytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.RateLimitBytesPerSec), int(o.RateLimitBytesPerSec))
}

// Upload streams the local file at path into the store under name.
func Upload(ctx context.Context, store BlobStore, name, path string, optFns ...func(o *TransferOptions)) error {
	opts := TransferOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	wb, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	var w io.Writer = wb
	if lim := opts.limiter(); lim != nil {
		w = &throttledWriter{ctx: ctx, lim: lim, w: wb}
	}
	if _, err := io.Copy(w, f); err != nil {
		wb.Abort()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return wb.Close()
}

// Download fetches the blob name into the local file at path. The file is
// written to a temp name and renamed into place, so a partial download never
// shadows a complete archive.
func Download(ctx context.Context, store BlobStore, name, path string, optFns ...func(o *TransferOptions)) error {
	opts := TransferOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	b, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	var r io.Reader = &blobReader{ctx: ctx, b: b}
	if lim := opts.limiter(); lim != nil {
		r = &throttledReader{ctx: ctx, lim: lim, r: r}
	}
	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// FetchAll downloads the named archives into dir concurrently. Each archive
// lands at dir/<name>. The first failure cancels the remaining downloads.
func FetchAll(ctx context.Context, store BlobStore, dir string, names []string, optFns ...func(o *TransferOptions)) error {
	opts := TransferOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, name := range names {
		g.Go(func() error {
			return Download(ctx, store, name, filepath.Join(dir, filepath.FromSlash(name)), optFns...)
		})
	}
	return g.Wait()
}

// blobReader adapts a Blob to io.Reader.
type blobReader struct {
	ctx context.Context
	b   Blob
	off int64
}

func (r *blobReader) Read(p []byte) (int, error) {
	if r.off >= r.b.Size() {
		return 0, io.EOF
	}
	n, err := r.b.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if err == io.EOF && r.off < r.b.Size() {
		err = nil
	}
	return n, err
}

type throttledWriter struct {
	ctx context.Context
	lim *rate.Limiter
	w   io.Writer
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := waitFor(t.ctx, t.lim, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}

type throttledReader struct {
	ctx context.Context
	lim *rate.Limiter
	r   io.Reader
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if waitErr := waitFor(t.ctx, t.lim, n); waitErr != nil && err == nil {
			err = waitErr
		}
	}
	return n, err
}

// waitFor reserves n bytes from the limiter, in burst-sized pieces so a
// single large buffer cannot exceed the burst.
func waitFor(ctx context.Context, lim *rate.Limiter, n int) error {
	for n > 0 {
		chunk := n
		if chunk > lim.Burst() {
			chunk = lim.Burst()
		}
		if err := lim.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
