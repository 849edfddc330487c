// package services defines interface Service for the remote playlist API
package services

import (
	"context"

	"github.com/desertthunder/pureplaylist/internal/models"
	"golang.org/x/oauth2"
)

// Service is the remote collection client consumed by the editor.
//
// Write calls take at most [MaxItemsPerWrite] uris; callers chunk larger payloads.
type Service interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// CurrentUser returns the profile of the authenticated user.
	CurrentUser(ctx context.Context) (*models.User, error)

	// ListPlaylists returns one page of the user's playlists.
	ListPlaylists(ctx context.Context, offset, limit int) (*models.Page[models.Playlist], error)

	// ListTracks returns one page of a playlist's tracks with OriginalIndex set from offset.
	ListTracks(ctx context.Context, playlistID string, offset, limit int) (*models.Page[models.TrackEntry], error)

	// PlaylistDetails returns playlist metadata including the owner id.
	PlaylistDetails(ctx context.Context, playlistID string) (*models.Playlist, error)

	// AudioFeatures fetches features for ids in one call.
	// Every requested id is present in the result; a nil value means the catalog has no record.
	AudioFeatures(ctx context.Context, ids []string) (map[string]*models.AudioFeatures, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error)

	// AppendTracks adds uris to the end of the playlist.
	AppendTracks(ctx context.Context, playlistID string, uris []string) error

	// ReplaceTracks overwrites the playlist contents with uris.
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error

	// DeleteTracks removes every occurrence of uris from the playlist.
	DeleteTracks(ctx context.Context, playlistID string, uris []string) error
}

// OAuthService is implemented by services that authenticate with the authorization code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
