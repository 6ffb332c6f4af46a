package store

import "fmt"

// Key builders for the mqtt column family. Every cluster-scoped prefix here
// must uniquely bound a scan -- no two record kinds may share a prefix.
func userKey(cluster, username string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/user/%s", cluster, username))
}

func userPrefix(cluster string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/user/", cluster))
}

func topicKey(cluster, topicName string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/topic/%s", cluster, topicName))
}

func topicPrefix(cluster string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/topic/", cluster))
}

func sessionKey(cluster, clientID string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/session/%s", cluster, clientID))
}

func sessionPrefix(cluster string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/session/", cluster))
}

func lastWillKey(cluster, clientID string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/lastwill/%s", cluster, clientID))
}

func lastWillPrefix(cluster string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/lastwill/", cluster))
}

func connectorKey(cluster, connectorName string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/connector/%s", cluster, connectorName))
}

func connectorPrefix(cluster string) []byte {
	return []byte(fmt.Sprintf("mqtt/%s/connector/", cluster))
}
