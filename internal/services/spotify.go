// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxItemsPerWrite is the most uris a single add/replace/remove call accepts.
	MaxItemsPerWrite = 100
	// MaxFeatureIDs is the most ids one audio-features call accepts.
	MaxFeatureIDs = 100
	// MaxPageSize is the largest limit the listing endpoints honor.
	MaxPageSize = 50
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
	Type       string          `json:"type"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	ReleaseDate          string         `json:"release_date"`
	ReleaseDatePrecision string         `json:"release_date_precision"`
	Images               []SpotifyImage `json:"images"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTrackTotal struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a playlist object, as listed or fetched by id.
type SpotifyPlaylist struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Owner       Owner              `json:"owner"`
	Public      bool               `json:"public"`
	Tracks      playlistTrackTotal `json:"tracks"`
	Images      []SpotifyImage     `json:"images"`
	SnapshotID  string             `json:"snapshot_id"`
	URI         string             `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is null for items that are no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaging is the envelope shared by every paginated listing.
type SpotifyPaging[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// SpotifyAudioFeatures is one entry of the audio-features response.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Tempo            float64 `json:"tempo"`
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Loudness         float64 `json:"loudness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and a [rate.Limiter] to pace sequential requests.
type SpotifyService struct {
	config      *oauth2.Config
	session     Session
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	credentials map[string]string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		credentials: credentials,
	}, nil
}

// Authenticate creates a session from stored tokens or by exchanging an authorization code.
//
// Expects an "access_token" (optionally with "refresh_token" and an RFC 3339 "expiry") or an "auth_code".
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	access, refresh := credentials["access_token"], credentials["refresh_token"]
	if access != "" || refresh != "" {
		token := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
		if exp := credentials["expiry"]; exp != "" {
			if t, err := time.Parse(time.RFC3339, exp); err == nil {
				token.Expiry = t
			}
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs an [OAuthSession] built from token.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", shared.ErrInvalidCredentials)
	}
	s.session = NewOAuthSession(s.config, token)
	return nil
}

// SetSession replaces the credential provider.
func (s *SpotifyService) SetSession(session Session) {
	s.session = session
}

// Session returns the active credential provider, or nil before authentication.
func (s *SpotifyService) Session() Session {
	return s.session
}

// SetHTTPClient sets the client used for API requests.
func (s *SpotifyService) SetHTTPClient(c *http.Client) {
	if c != nil {
		s.httpClient = c
	}
}

// SetBaseURL points the service at a different API root (used by tests).
func (s *SpotifyService) SetBaseURL(u string) {
	s.baseURL = strings.TrimRight(u, "/")
}

// SetRateLimit caps outgoing requests per second. Zero or less disables pacing.
func (s *SpotifyService) SetRateLimit(rps float64) {
	if rps <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// call issues one request through [WithAuthRetry].
func (s *SpotifyService) call(ctx context.Context, method, endpoint string, body, result any) error {
	return WithAuthRetry(ctx, s.session, func(ctx context.Context) error {
		return s.doRequest(ctx, method, endpoint, body, result)
	})
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.session == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	credential, err := s.session.Credential(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if err := checkStatus(resp, data); err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// checkStatus classifies non-2xx responses into shared sentinel errors.
func checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	var apiErr spotifyError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrForbidden, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, msg)
	case http.StatusTooManyRequests:
		if after := resp.Header.Get("Retry-After"); after != "" {
			return fmt.Errorf("%w: retry after %ss", shared.ErrRateLimited, after)
		}
		return fmt.Errorf("%w: %s", shared.ErrRateLimited, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// CurrentUser retrieves the current authenticated user's profile and records its id on the session.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user SpotifyUser
	if err := s.call(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	if setter, ok := s.session.(interface{ SetUserID(string) }); ok {
		setter.SetUserID(user.ID)
	}

	return &models.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
	}, nil
}

// ListPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) ListPlaylists(ctx context.Context, offset, limit int) (*models.Page[models.Playlist], error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaging[*SpotifyPlaylist]
	if err := s.call(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	page := &models.Page[models.Playlist]{
		Offset:   offset,
		Limit:    limit,
		Total:    response.Total,
		Consumed: len(response.Items),
	}
	if response.Next != nil {
		page.Next = *response.Next
	}
	for _, sp := range response.Items {
		if sp == nil || sp.ID == "" {
			continue
		}
		page.Items = append(page.Items, toPlaylist(*sp))
	}
	return page, nil
}

// ListTracks retrieves one page of a playlist's tracks.
//
// Unavailable items and podcast episodes are dropped but still count toward OriginalIndex,
// so the index keeps matching the remote position.
func (s *SpotifyService) ListTracks(ctx context.Context, playlistID string, offset, limit int) (*models.Page[models.TrackEntry], error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d&additional_types=track",
		url.PathEscape(playlistID), limit, offset)

	var response SpotifyPaging[SpotifyPlaylistTrack]
	if err := s.call(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	page := &models.Page[models.TrackEntry]{
		Offset:   offset,
		Limit:    limit,
		Total:    response.Total,
		Consumed: len(response.Items),
	}
	if response.Next != nil {
		page.Next = *response.Next
	}
	for i, item := range response.Items {
		if item.Track == nil || item.Track.URI == "" || (item.Track.Type != "" && item.Track.Type != "track") {
			continue
		}
		entry := toTrackEntry(*item.Track)
		entry.OriginalIndex = offset + i + 1
		entry.IsLocal = entry.IsLocal || item.IsLocal
		page.Items = append(page.Items, entry)
	}
	return page, nil
}

// PlaylistDetails retrieves playlist metadata by ID.
func (s *SpotifyService) PlaylistDetails(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	endpoint := fmt.Sprintf("/playlists/%s?fields=%s", url.PathEscape(playlistID),
		url.QueryEscape("id,name,description,public,snapshot_id,images,owner(id,display_name),tracks.total"))

	var playlist SpotifyPlaylist
	if err := s.call(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}

	p := toPlaylist(playlist)
	return &p, nil
}

// AudioFeatures retrieves features for up to [MaxFeatureIDs] tracks in one call.
//
// The response is index-aligned with the request; null entries become nil map values.
func (s *SpotifyService) AudioFeatures(ctx context.Context, ids []string) (map[string]*models.AudioFeatures, error) {
	if len(ids) == 0 {
		return map[string]*models.AudioFeatures{}, nil
	}
	if len(ids) > MaxFeatureIDs {
		return nil, fmt.Errorf("%w: at most %d ids per request, got %d", shared.ErrInvalidArgument, MaxFeatureIDs, len(ids))
	}

	endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(ids, ","))

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.call(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	result := make(map[string]*models.AudioFeatures, len(ids))
	for _, id := range ids {
		result[id] = nil
	}
	for i, f := range response.AudioFeatures {
		if f == nil {
			continue
		}
		id := f.ID
		if id == "" && i < len(ids) {
			id = ids[i]
		}
		if _, requested := result[id]; !requested {
			continue
		}
		result[id] = &models.AudioFeatures{
			ID:               id,
			Tempo:            f.Tempo,
			Energy:           f.Energy,
			Danceability:     f.Danceability,
			Valence:          f.Valence,
			Acousticness:     f.Acousticness,
			Instrumentalness: f.Instrumentalness,
			Loudness:         f.Loudness,
			Key:              f.Key,
			Mode:             f.Mode,
			TimeSignature:    f.TimeSignature,
		}
	}
	return result, nil
}

// CreatePlaylist creates an empty playlist for userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name is empty", shared.ErrValidation)
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.call(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	p := toPlaylist(created)
	if p.OwnerID == "" {
		p.OwnerID = userID
	}
	return &p, nil
}

func checkWriteSize(playlistID string, uris []string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if len(uris) > MaxItemsPerWrite {
		return fmt.Errorf("%w: at most %d uris per request, got %d", shared.ErrInvalidArgument, MaxItemsPerWrite, len(uris))
	}
	return nil
}

// AppendTracks adds uris to the end of the playlist.
func (s *SpotifyService) AppendTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := checkWriteSize(playlistID, uris); err != nil {
		return err
	}
	if len(uris) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.call(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, &snapshotResponse{})
}

// ReplaceTracks overwrites the playlist contents. An empty uris slice clears the playlist.
func (s *SpotifyService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := checkWriteSize(playlistID, uris); err != nil {
		return err
	}
	if uris == nil {
		uris = []string{}
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.call(ctx, http.MethodPut, endpoint, map[string]any{"uris": uris}, &snapshotResponse{})
}

// DeleteTracks removes every occurrence of uris from the playlist.
func (s *SpotifyService) DeleteTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := checkWriteSize(playlistID, uris); err != nil {
		return err
	}
	if len(uris) == 0 {
		return nil
	}

	type trackRef struct {
		URI string `json:"uri"`
	}
	refs := make([]trackRef, len(uris))
	for i, uri := range uris {
		refs[i] = trackRef{URI: uri}
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.call(ctx, http.MethodDelete, endpoint, map[string]any{"tracks": refs}, &snapshotResponse{})
}

func toPlaylist(sp SpotifyPlaylist) models.Playlist {
	p := models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		OwnerID:     sp.Owner.ID,
		OwnerName:   sp.Owner.DisplayName,
		Public:      sp.Public,
		SnapshotID:  sp.SnapshotID,
	}
	if len(sp.Images) > 0 {
		p.ImageURL = sp.Images[0].URL
	}
	return p
}

func toTrackEntry(st SpotifyTrack) models.TrackEntry {
	entry := models.TrackEntry{
		ID:          st.ID,
		URI:         st.URI,
		Title:       st.Name,
		Album:       st.Album.Name,
		ReleaseDate: models.ParseReleaseDate(st.Album.ReleaseDate),
		DurationMS:  st.DurationMS,
		IsLocal:     st.IsLocal || strings.HasPrefix(st.URI, models.LocalURIPrefix),
	}
	for _, a := range st.Artists {
		if a.Name != "" {
			entry.Artists = append(entry.Artists, a.Name)
		}
	}
	for _, img := range st.Album.Images {
		entry.AlbumImages = append(entry.AlbumImages, models.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}
	if entry.IsLocal {
		entry.ID = ""
	}
	return entry
}
