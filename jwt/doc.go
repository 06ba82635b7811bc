// Package jwt decodes provider access tokens into identity claims. By default it
// reads claims without checking the signature, like a browser-side decoder; a
// configured signing method and key switch it to full verification.
package jwt
