// Package server provides the local HTTP listener used to complete the OAuth2 authorization code flow.
//
// # Routing
//
// [NewCallbackMux] registers a [Handler] on its routes using GET method patterns of [http.ServeMux].
// [Chain] applies [Middleware] with the first one outermost. [RequestLogger] and [Recoverer]
// are the middleware the CLI installs.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// [ListenForCallback] runs the handler on the host and port of the configured redirect URI
// until a result arrives, the context ends or the timeout elapses.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
