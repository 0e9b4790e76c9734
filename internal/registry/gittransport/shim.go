// Package gittransport shells out to a real `git` binary to implement the
// server side of the smart-HTTP protocol's upload-pack service; the wire
// protocol itself is out of scope to reimplement.
package gittransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/onelson/estuary-go/internal/apperrors"
	"github.com/onelson/estuary-go/internal/logging"
)

// Shim invokes an external git binary against one index directory.
type Shim struct {
	gitBinary string
	indexDir  string
}

// New returns a Shim that will invoke gitBinary against indexDir.
func New(gitBinary, indexDir string) *Shim {
	if gitBinary == "" {
		gitBinary = "git"
	}
	return &Shim{gitBinary: gitBinary, indexDir: indexDir}
}

// UploadPack is the only service name this registry's Git endpoint serves.
const UploadPack = "upload-pack"

// pktLine frames s in Git's pkt-line format: a 4-hex-digit length prefix
// (including itself) followed by the literal bytes.
func pktLine(s string) string {
	return fmt.Sprintf("%04x%s", len(s)+4, s)
}

// InfoRefs runs `git <service> --stateless-rpc --advertise-refs <index>`
// and wraps its stdout with the pkt-line service announcement header. Only
// "upload-pack" is accepted.
func (s *Shim) InfoRefs(ctx context.Context, service string) ([]byte, apperrors.Envelope) {
	if service != UploadPack {
		return nil, apperrors.New(apperrors.CodeBadRequest, "unsupported git service")
	}

	cmd := exec.CommandContext(ctx, s.gitBinary, service, "--stateless-rpc", "--advertise-refs", s.indexDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logging.Log().Debug().
		Str("service", service).
		Dur("elapsed", time.Since(start)).
		Msg("git info/refs invocation")
	if err != nil {
		logging.Log().Error().Str("stderr", stderr.String()).Err(err).Msg("git info/refs failed")
		return nil, apperrors.WrapError(apperrors.CodeGit, "git info/refs invocation failed", err)
	}

	header := pktLine(fmt.Sprintf("# service=git-%s\n", service)) + "0000"
	return append([]byte(header), stdout.Bytes()...), apperrors.Envelope{}
}

// UploadPackResult runs `git upload-pack --stateless-rpc <index>`, piping
// body to its stdin and returning its stdout.
func (s *Shim) UploadPackResult(ctx context.Context, body io.Reader) ([]byte, apperrors.Envelope) {
	cmd := exec.CommandContext(ctx, s.gitBinary, UploadPack, "--stateless-rpc", s.indexDir)
	cmd.Stdin = body
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logging.Log().Debug().
		Dur("elapsed", time.Since(start)).
		Msg("git upload-pack invocation")
	if err != nil {
		logging.Log().Error().Str("stderr", stderr.String()).Err(err).Msg("git upload-pack failed")
		return nil, apperrors.WrapError(apperrors.CodeGit, "git upload-pack invocation failed", err)
	}
	return stdout.Bytes(), apperrors.Envelope{}
}
