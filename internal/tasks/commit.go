package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// DefaultChunkSize is the most uris a single playlist write accepts.
const DefaultChunkSize = 100

// PlaylistWriter is the slice of [services.Service] the committer needs.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error)
	AppendTracks(ctx context.Context, playlistID string, uris []string) error
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error
	DeleteTracks(ctx context.Context, playlistID string, uris []string) error
}

// CommitRecorder stores commit attempts. Implemented by repositories.CommitLogRepository.
type CommitRecorder interface {
	Create(ctx context.Context, record *models.CommitRecord) error
}

// CommitStage names the step a commit was in when it stopped.
type CommitStage string

const (
	StageCreate  CommitStage = "create"
	StageReplace CommitStage = "replace"
	StageAppend  CommitStage = "append"
	StageDelete  CommitStage = "delete"
)

type CommitRequest struct {
	Mode         models.CommitMode
	PlaylistID   string
	PlaylistName string
	OwnerID      string
	UserID       string
	// Name, Description and Public apply to CreateNew.
	Name        string
	Description string
	Public      bool
	// URIs is the edited list in display order.
	URIs []string
	// OriginalURIs is the list as fetched, in remote order.
	OriginalURIs []string
	Deleted      map[string]struct{}
}

type CommitResult struct {
	PlaylistID   string
	Created      bool
	ItemsApplied int
	Chunks       int
	// DeleteOnly is true when only removals were sent and remote order was left untouched.
	DeleteOnly bool
	// SkippedLocal counts spotify:local: uris left out of the writes. The Web API cannot add or remove them.
	SkippedLocal int
}

// CommitError reports where a chunked write stopped.
//
// It matches [shared.ErrPartialCommit] when anything reached the remote side
// and [shared.ErrCommitFailed] otherwise, as well as the underlying cause.
type CommitError struct {
	Stage        CommitStage
	Chunk        int // 1-based chunk that failed
	TotalChunks  int
	ItemsApplied int
	PlaylistID   string
	Created      bool
	Err          error
}

func (e *CommitError) Error() string {
	msg := fmt.Sprintf("%s chunk %d/%d failed after %d items", e.Stage, e.Chunk, e.TotalChunks, e.ItemsApplied)
	if e.Created {
		msg += fmt.Sprintf(" (new playlist %s was created)", e.PlaylistID)
	}
	return fmt.Sprintf("%v: %s: %v", e.kind(), msg, e.Err)
}

func (e *CommitError) kind() error {
	if e.ItemsApplied > 0 || e.Created {
		return shared.ErrPartialCommit
	}
	return shared.ErrCommitFailed
}

func (e *CommitError) Unwrap() []error {
	return []error{e.kind(), e.Err}
}

type CommitOpts struct {
	ChunkSize int
	Logger    *log.Logger
	Progress  chan<- ProgressUpdate
	Recorder  CommitRecorder
}

// Committer writes an edited track list back in sequential chunks. Failed chunks are not retried.
type Committer struct {
	writer    PlaylistWriter
	chunkSize int
	logger    *log.Logger
	progress  chan<- ProgressUpdate
	recorder  CommitRecorder
}

func NewCommitter(w PlaylistWriter, opts CommitOpts) *Committer {
	if opts.ChunkSize <= 0 || opts.ChunkSize > DefaultChunkSize {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Committer{
		writer:    w,
		chunkSize: opts.ChunkSize,
		logger:    opts.Logger,
		progress:  opts.Progress,
		recorder:  opts.Recorder,
	}
}

// Commit validates req and writes it.
//
// UpdateExisting requires the user to own the playlist and fails before any write otherwise.
// When the surviving order matches the fetched order only the deleted uris are removed;
// any reordering rewrites the playlist (replace with the first chunk, append the rest).
// CreateNew creates the playlist and appends every chunk.
// Local-file uris are never sent; a rewrite drops them from the remote playlist.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	uris := withoutDeleted(req.URIs, req.Deleted)

	var (
		result *CommitResult
		err    error
	)
	switch req.Mode {
	case models.UpdateExisting:
		if req.PlaylistID == "" {
			return nil, shared.ErrNoPlaylist
		}
		if req.UserID == "" || req.OwnerID != req.UserID {
			return nil, fmt.Errorf("%w: playlist %s is owned by %q", shared.ErrPermissionDenied, req.PlaylistID, req.OwnerID)
		}
		result, err = c.update(ctx, req, uris)
	case models.CreateNew:
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: playlist name is empty", shared.ErrValidation)
		}
		if req.UserID == "" {
			return nil, fmt.Errorf("%w: user id unknown", shared.ErrNotAuthenticated)
		}
		req.Name = name
		result, err = c.create(ctx, req, uris)
	default:
		return nil, fmt.Errorf("%w: commit mode %v", shared.ErrInvalidArgument, req.Mode)
	}

	c.record(ctx, req, len(uris), result, err)

	if err != nil {
		c.logger.Error("commit failed", "playlist", req.PlaylistID, "mode", req.Mode, "error", err)
		return nil, err
	}

	if result.SkippedLocal > 0 {
		c.logger.Warn("local files skipped", "playlist", result.PlaylistID, "count", result.SkippedLocal)
	}
	c.logger.Info("commit applied", "playlist", result.PlaylistID, "mode", req.Mode, "items", result.ItemsApplied, "chunks", result.Chunks)
	sendProgress(c.progress, commitDoneUpdate(result))
	return result, nil
}

func (c *Committer) update(ctx context.Context, req CommitRequest, uris []string) (*CommitResult, error) {
	if slices.Equal(uris, withoutDeleted(req.OriginalURIs, req.Deleted)) {
		removed, skipped := withoutLocal(deletedInOrder(req.OriginalURIs, req.Deleted))
		result := &CommitResult{PlaylistID: req.PlaylistID, DeleteOnly: true, SkippedLocal: skipped}
		if len(removed) == 0 {
			return result, nil
		}
		applied, chunks, err := c.writeChunks(ctx, StageDelete, req.PlaylistID, removed, false)
		result.ItemsApplied, result.Chunks = applied, chunks
		return result, err
	}

	uris, skipped := withoutLocal(uris)
	applied, chunks, err := c.writeChunks(ctx, StageReplace, req.PlaylistID, uris, false)
	return &CommitResult{PlaylistID: req.PlaylistID, ItemsApplied: applied, Chunks: chunks, SkippedLocal: skipped}, err
}

func (c *Committer) create(ctx context.Context, req CommitRequest, uris []string) (*CommitResult, error) {
	created, err := c.writer.CreatePlaylist(ctx, req.UserID, req.Name, req.Description, req.Public)
	if err != nil {
		return nil, &CommitError{Stage: StageCreate, Chunk: 1, TotalChunks: 1, Err: err}
	}
	sendProgress(c.progress, createPlaylistUpdate(created))

	uris, skipped := withoutLocal(uris)
	result := &CommitResult{PlaylistID: created.ID, Created: true, SkippedLocal: skipped}
	if len(uris) == 0 {
		return result, nil
	}

	applied, chunks, err := c.writeChunks(ctx, StageAppend, created.ID, uris, true)
	result.ItemsApplied, result.Chunks = applied, chunks
	return result, err
}

// writeChunks sends uris in order. StageReplace sends the first chunk as a replace and the rest as appends;
// an empty list under StageReplace clears the playlist.
func (c *Committer) writeChunks(ctx context.Context, stage CommitStage, playlistID string, uris []string, created bool) (int, int, error) {
	chunks := slices.Collect(slices.Chunk(uris, c.chunkSize))
	if len(chunks) == 0 && stage == StageReplace {
		chunks = [][]string{{}}
	}

	applied := 0
	for i, chunk := range chunks {
		step := stage
		if stage == StageReplace && i > 0 {
			step = StageAppend
		}

		var err error
		var phase Phase
		switch step {
		case StageReplace:
			phase = ReplaceTracks
			err = c.writer.ReplaceTracks(ctx, playlistID, chunk)
		case StageAppend:
			phase = AppendTracks
			err = c.writer.AppendTracks(ctx, playlistID, chunk)
		case StageDelete:
			phase = DeleteTracks
			err = c.writer.DeleteTracks(ctx, playlistID, chunk)
		}

		if err != nil {
			return applied, i, &CommitError{
				Stage:        step,
				Chunk:        i + 1,
				TotalChunks:  len(chunks),
				ItemsApplied: applied,
				PlaylistID:   playlistID,
				Created:      created,
				Err:          err,
			}
		}

		applied += len(chunk)
		sendProgress(c.progress, chunkUpdate(phase, i+1, len(chunks), len(chunk)))
	}
	return applied, len(chunks), nil
}

func (c *Committer) record(ctx context.Context, req CommitRequest, total int, result *CommitResult, err error) {
	if c.recorder == nil {
		return
	}

	rec := &models.CommitRecord{
		PlaylistID:   req.PlaylistID,
		PlaylistName: req.PlaylistName,
		Mode:         req.Mode.String(),
		Status:       models.CommitSucceeded,
		TotalItems:   total,
	}
	if req.Mode == models.CreateNew {
		rec.PlaylistName = req.Name
	}
	if result != nil {
		rec.PlaylistID = result.PlaylistID
		rec.ItemsApplied = result.ItemsApplied
		rec.ChunksApplied = result.Chunks
		rec.TotalChunks = result.Chunks
	}

	if err != nil {
		rec.Status = models.CommitFailed
		rec.Error = err.Error()
		var ce *CommitError
		if errors.As(err, &ce) {
			rec.Stage = string(ce.Stage)
			rec.TotalChunks = ce.TotalChunks
			rec.ChunksApplied = ce.Chunk - 1
			rec.ItemsApplied = ce.ItemsApplied
			if ce.PlaylistID != "" {
				rec.PlaylistID = ce.PlaylistID
			}
			if ce.ItemsApplied > 0 || ce.Created {
				rec.Status = models.CommitPartial
			}
		}
	}

	if rerr := c.recorder.Create(ctx, rec); rerr != nil {
		c.logger.Warn("failed to record commit", "playlist", rec.PlaylistID, "error", rerr)
	}
}

func withoutDeleted(uris []string, deleted map[string]struct{}) []string {
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if _, gone := deleted[uri]; !gone {
			out = append(out, uri)
		}
	}
	return out
}

// withoutLocal drops local-file uris and reports how many were dropped.
func withoutLocal(uris []string) ([]string, int) {
	out := slices.DeleteFunc(slices.Clone(uris), func(uri string) bool {
		return strings.HasPrefix(uri, models.LocalURIPrefix)
	})
	return out, len(uris) - len(out)
}

// deletedInOrder lists each deleted uri once, in the order it appears in uris.
func deletedInOrder(uris []string, deleted map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, uri := range uris {
		if _, gone := deleted[uri]; !gone {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}
