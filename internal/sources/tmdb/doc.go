// Package tmdb implements the client for The Movie Database API, the primary
// metadata source. It covers the discover, detail, person, changes, and
// latest-id endpoints; detail fetches carry the full append_to_response
// bundle so one request returns credits, keywords, videos, images, providers,
// external ids, ratings, alternative titles, translations, and the related
// title feeds.
package tmdb
