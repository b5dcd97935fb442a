// Command deployforge drives one Transaction (C6) against a cluster and
// environment described by a manifest file: bootstrap/pause/resume/
// upgrade/delete a cluster, or deploy/pause/delete/restart the services
// on it.
package main

func main() {
	Execute()
}
