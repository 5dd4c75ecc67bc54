package model

import (
	"fmt"
	"path"
	"strings"
)

const (
	// MetadataDir is the directory holding workspace metadata, at the root of the workspace
	MetadataDir = ".dataworkspace"

	// metadata files, relative to the metadata directory
	configFile              = "config.json"
	localParamsFile         = "local_params.json"
	resourcesFile           = "resources.json"
	resourceLocalParamsFile = "resource_local_params.json"
	snapshotHistoryFile     = "snapshots/snapshot_history.json"
	currentLineageDir       = "current_lineage"
	snapshotLineageDir      = "snapshot_lineage"
	hashCacheDir            = "file"
	gitIgnoreFile           = ".gitignore"

	// ResultsSnapshotsDir is the directory of results resources which holds archived snapshots
	ResultsSnapshotsDir = "snapshots"

	// ResultsFile is the file of results resources from which metrics are harvested
	ResultsFile = "results.json"

	// LineageManifestFile is the name of the lineage manifest stored beside archived results
	LineageManifestFile = "lineage.json"

	lineageExt = ".json"
)

// GetPathToConfig yields the metadata key of the workspace configuration
func GetPathToConfig() string { return configFile }

// GetPathToLocalParams yields the metadata key of the local parameters
func GetPathToLocalParams() string { return localParamsFile }

// GetPathToResources yields the metadata key of the resource parameters
func GetPathToResources() string { return resourcesFile }

// GetPathToResourceLocalParams yields the metadata key of local resource parameters
func GetPathToResourceLocalParams() string { return resourceLocalParamsFile }

// GetPathToSnapshotHistory yields the metadata key of the snapshot history
func GetPathToSnapshotHistory() string { return snapshotHistoryFile }

// GetPathToGitIgnore yields the metadata key of the .gitignore file
func GetPathToGitIgnore() string { return gitIgnoreFile }

// GetPathToCurrentLineage yields the metadata key of the current lineage of a resource
func GetPathToCurrentLineage(resource string) string {
	return path.Join(currentLineageDir, resource+lineageExt)
}

// GetPathPrefixToCurrentLineage yields the metadata key prefix of all current lineage
func GetPathPrefixToCurrentLineage() string {
	return currentLineageDir + "/"
}

// GetPathToSnapshotLineage yields the metadata key of the lineage of a resource saved with a snapshot
func GetPathToSnapshotLineage(snapshotHash, resource string) string {
	return path.Join(snapshotLineageDir, snapshotHash, resource+lineageExt)
}

// GetPathPrefixToSnapshotLineage yields the metadata key prefix of the lineage saved with a snapshot
func GetPathPrefixToSnapshotLineage(snapshotHash string) string {
	return path.Join(snapshotLineageDir, snapshotHash) + "/"
}

// GetPathToHashCache yields the metadata directory holding the hash listings of an unmanaged resource
func GetPathToHashCache(role Role, resource string) string {
	return path.Join(hashCacheDir, string(role), resource)
}

// ResourceFromLineagePath extracts a resource name from a lineage key
func ResourceFromLineagePath(key string) (string, error) {
	base := path.Base(key)
	if !strings.HasSuffix(base, lineageExt) {
		return "", fmt.Errorf("path is invalid: expect a %s lineage file: %s", lineageExt, key)
	}
	return strings.TrimSuffix(base, lineageExt), nil
}

// GetResultsSnapshotDir yields the directory, relative to a results resource, where results of a snapshot are archived
func GetResultsSnapshotDir(hostname, snapshotName string) string {
	if hostname == "" {
		hostname = "localhost"
	}
	return path.Join(ResultsSnapshotsDir, hostname+"-"+snapshotName)
}

// GetResultsLineageManifest yields the path, relative to a results resource, of a snapshot lineage manifest
func GetResultsLineageManifest(hostname, snapshotName string) string {
	return path.Join(GetResultsSnapshotDir(hostname, snapshotName), LineageManifestFile)
}
