package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/flightdeck/extractor-gateway/internal/problem"
	"github.com/flightdeck/extractor-gateway/internal/proxy"
	"github.com/flightdeck/extractor-gateway/internal/server"
	"github.com/flightdeck/extractor-gateway/internal/upload"
)

const extractPath = "/api/v1/extractor/extract"

// reasonCodes maps validator rejection reasons to their wire problem codes.
// Reasons without a dedicated code fall back to validation_error.
var reasonCodes = map[string]problem.Code{
	upload.ReasonNoFile:          problem.CodeNoFileProvided,
	upload.ReasonFileTooLarge:    problem.CodeFileTooLarge,
	upload.ReasonUnsupportedType: problem.CodeUnsupportedFile,
}

// Extract accepts a multipart batch of files, runs each through the content
// validator, and forwards the accepted batch upstream with sanitized names
// and fingerprints. The first rejection fails the whole request.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r.Context())

	// One extra byte over the batch budget makes oversized bodies detectable.
	limit := h.cfg.Upload.MaxSize*int64(h.cfg.Upload.MaxBatch) + 1
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxSize); err != nil {
		code := problem.CodeInvalidRequest
		detail := "request body is not valid multipart form data"
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			code = problem.CodeFileTooLarge
			detail = "request body exceeds the upload size limit"
		}
		problem.WriteError(w, problem.New(code, detail), requestID)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := fileHeaders(r.MultipartForm)
	if len(headers) == 0 {
		problem.WriteError(w, problem.New(problem.CodeNoFileProvided, "no file provided"), requestID)
		return
	}
	if len(headers) > h.cfg.Upload.MaxBatch {
		problem.WriteError(w,
			problem.Newf(problem.CodeInvalidRequest, "batch exceeds the maximum of %d files", h.cfg.Upload.MaxBatch),
			requestID)
		return
	}

	var accepted []acceptedFile
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			problem.WriteError(w, problem.New(problem.CodeInvalidRequest, "failed to read uploaded file"), requestID)
			return
		}

		verdict := h.validator.Validate(f)
		if !verdict.Accepted {
			server.ValidationRejections.WithLabelValues(verdict.Reason).Inc()
			server.AddLogField(r.Context(), "rejected_file_reason", verdict.Reason)
			problem.WriteError(w, rejectionProblem(f.Name, verdict.Reason), requestID)
			return
		}
		for _, warning := range verdict.Warnings {
			h.logger.Warn("upload accepted with warning",
				"request_id", requestID, "file", f.Name, "warning", warning)
		}

		fp, err := h.validator.Fingerprint(f)
		if err != nil {
			problem.WriteError(w, problem.New(problem.CodeProcessingFailed, "failed to fingerprint file"), requestID)
			return
		}
		accepted = append(accepted, acceptedFile{file: f, fingerprint: fp})
	}

	body, contentType, err := buildUpstreamForm(accepted)
	if err != nil {
		problem.WriteError(w, problem.New(problem.CodeInternalError, "failed to assemble upstream request"), requestID)
		return
	}

	header := r.Header.Clone()
	header.Set("Content-Type", contentType)

	res, err := h.forwarder.Do(r.Context(), http.MethodPost, extractPath, header, body, h.cfg.Upstream.UploadTimeout)
	if err != nil {
		problem.WriteError(w, err, requestID)
		return
	}
	proxy.Relay(w, res)
}

type acceptedFile struct {
	file        *upload.File
	fingerprint *upload.Fingerprint
}

// fileHeaders flattens every file part of the form, preserving order.
func fileHeaders(form *multipart.Form) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, fhs := range form.File {
		out = append(out, fhs...)
	}
	return out
}

func readFile(fh *multipart.FileHeader) (*upload.File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	return &upload.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        int64(len(content)),
		Content:     content,
	}, nil
}

func rejectionProblem(name, reason string) *problem.Problem {
	code, ok := reasonCodes[reason]
	if !ok {
		code = problem.CodeValidationError
	}
	return problem.Newf(code, "file %q rejected: %s", name, reason)
}

// buildUpstreamForm re-assembles the accepted batch into a fresh multipart
// body. Files travel under their sanitized names; the original names never
// reach the upstream storage path. Each file's fingerprint rides along as a
// JSON form field.
func buildUpstreamForm(accepted []acceptedFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, af := range accepted {
		part, err := mw.CreateFormFile("files", af.fingerprint.StoredName)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(af.file.Content); err != nil {
			return nil, "", err
		}

		meta, err := json.Marshal(af.fingerprint)
		if err != nil {
			return nil, "", err
		}
		if err := mw.WriteField("fingerprints", string(meta)); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
