/*
Package easytoyou talks to the easytoyou.eu ionCube decoder through its HTML forms.

	+-----------+      +-------------------+      +-------------------+
	|  Client   +----->+  headerTransport  +----->+ retryablehttp     +----> net
	| (session) |      | (browser headers) |      | (429/5xx, net)    |
	+-----+-----+      +-------------------+      +-------------------+
	      |
	      +-- Login            GET/POST /login
	      +-- Upload           GET/POST /decoder/<version>
	      +-- DownloadDecoded  GET /download.php?id=all
	      +-- ClearQueue       GET/POST /decoder/<version>/1

🎯 Purpose:
- Owns the cookie session for one run
- Knows the site's markup (selectors, field names, result messages)
- Turns HTML pages into remote.UploadResult values and typed errors

🤝 Interfaces:
- remote.Client: implemented by *Client
- FieldLocator: finds the upload field name on the decoder page; SelectorLocator is
  the default and can be swapped when the markup changes

The site is not an API. Every selector in this package encodes how the pages look
today and is expected to need updates.
*/
package easytoyou
