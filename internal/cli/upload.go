// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// upload.go - The upload command.
package cli

import (
	"context"
	"fmt"
	"os"
)

// HandleUpload handles "shyft upload FILE...". Every file is attempted; the
// command fails if any upload failed.
func HandleUpload(ctx context.Context, env *Env, args Args) error {
	if len(args.Files) == 0 {
		return ErrMissingArgument("file", "shyft upload report.pdf")
	}

	data := UploadData{Files: make([]UploadFileResult, 0, len(args.Files))}
	var firstErr error

	for _, path := range args.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := uploadOne(ctx, env, path)
		data.Files = append(data.Files, res.UploadFileResult)
		if res.err != nil {
			data.Failed++
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		data.Succeeded++
	}

	if env.JSON {
		if firstErr != nil {
			resp := NewJSONErrorResponse("upload", uploadSummaryError(data, firstErr))
			resp.Data = data
			resp.Fprint(env.Out)
			return &reportedError{uploadSummaryError(data, firstErr)}
		}
		return NewJSONResponse("upload", data).Fprint(env.Out)
	}

	if firstErr != nil {
		return uploadSummaryError(data, firstErr)
	}
	return nil
}

type uploadOutcome struct {
	UploadFileResult
	err error
}

func uploadOne(ctx context.Context, env *Env, path string) uploadOutcome {
	out := uploadOutcome{UploadFileResult: UploadFileResult{Path: path}}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		out.err = NewNotFoundError("file", path)
	case info.IsDir():
		out.err = NewValidationError("file", path, "is a directory")
	}
	if out.err != nil {
		out.Error = out.err.Error()
		if !env.JSON {
			fmt.Fprintf(env.Err, "%s %s: %v\n", RenderStatus("fail"), path, out.err)
		}
		return out
	}

	if !supportedUpload(path) && !env.JSON {
		fmt.Fprintf(env.Err, "%s %s is not a .pdf or .html file; the server may reject it\n",
			RenderStatus("warn"), path)
	}

	res, err := env.Client.Upload(ctx, path)
	if err != nil {
		out.err = err
		out.Error = err.Error()
		if !env.JSON {
			fmt.Fprintf(env.Err, "%s %s: %v\n", RenderStatus("fail"), path, err)
		}
		return out
	}

	out.Message = res.Message
	if !env.JSON {
		msg := res.Message
		if msg == "" {
			msg = "uploaded"
		}
		if env.Quiet {
			fmt.Fprintln(env.Out, path)
		} else {
			fmt.Fprintf(env.Out, "%s %s %s\n", RenderStatus("ok"), path,
				DimStyle.Render(fmt.Sprintf("(%s) %s", formatBytes(info.Size()), msg)))
		}
	}
	return out
}

func uploadSummaryError(data UploadData, first error) error {
	if data.Failed == 1 && len(data.Files) == 1 {
		return first
	}
	return NewCommandError("upload", "send",
		fmt.Sprintf("%d of %d files failed", data.Failed, len(data.Files)), first)
}

// reportedError marks an error that the handler already printed. main only
// uses it for the exit code.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already displayed by its handler.
func IsReported(err error) bool {
	_, ok := err.(*reportedError)
	return ok
}
