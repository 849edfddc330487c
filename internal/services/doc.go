// Package services defines the [Service] interface for the remote playlist API and implements it for Spotify.
//
// # Service Interface
//
// [Service] is the remote collection client the editor depends on: paged listings of playlists
// and tracks, batched audio-feature lookups, and the three playlist write calls (append, replace, delete).
// Write calls accept at most [MaxItemsPerWrite] uris; chunking is the caller's job.
//
// # Spotify Implementation
//
// [SpotifyService] speaks JSON over HTTPS with a bearer credential supplied by a [Session].
// A [rate.Limiter] paces requests so sequential paging stays under the remote limits. It only delays,
// it never retries.
//
// # Sessions and Auth Retry
//
// [OAuthSession] wraps an [oauth2.Token]. Tokens near expiry are refreshed by the oauth2 token source;
// a 401 from the API is handled by [WithAuthRetry], which refreshes once and replays the call once.
// Every newly issued token is reported to the callback set with [OAuthSession.SetTokenRefreshCallback]
// so it can be written to a [TokenStore] ([KeyringTokenStore] or [ConfigTokenStore]).
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : 401, after the single refresh and retry
//   - [shared.ErrForbidden] : 403, e.g. writing a playlist owned by someone else
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrRateLimited] : 429, with Retry-After in the message
//   - [shared.ErrAPIRequest] : any other failure
//
// # API Mappings
//
// Listing responses map to [models.Page]. Playlist items carry a 1-based OriginalIndex derived from the
// page offset; unavailable items are dropped but still counted in [models.Page.Consumed] so paging
// and indices stay aligned with remote positions.
package services
