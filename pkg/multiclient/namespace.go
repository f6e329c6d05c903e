package multiclient

import "strings"

// Resource URIs are not globally unique across servers, so list operations
// prefix them with the owning server's name ("server:scheme://path") and
// ReadResource strips the prefix again to auto-route. Tool and prompt names
// are never rewritten; protocol calls address them by bare name and routing
// relies on the side tables instead.

const namespaceSeparator = ":"

func namespaceURI(serverName, uri string) string {
	return serverName + namespaceSeparator + uri
}

// splitNamespacedURI splits "server:scheme://path" into its parts. A URI
// whose first ":" is immediately followed by "//" is a bare scheme URI
// ("inventory://overview"), not a namespaced one, and reports ok=false.
func splitNamespacedURI(uri string) (serverName, bareURI string, ok bool) {
	idx := strings.Index(uri, namespaceSeparator)
	if idx <= 0 {
		return "", "", false
	}
	rest := uri[idx+1:]
	if strings.HasPrefix(rest, "//") {
		return "", "", false
	}
	return uri[:idx], rest, true
}
