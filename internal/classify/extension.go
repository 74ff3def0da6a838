package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/temirov/drive-optimizer/internal/drivefile"
)

const (
	noExtensionFolderName = "No extension"
	extensionFolderSuffix = "_folder"
	extensionKeyPrefix    = "ext_"
)

type extensionGroup struct {
	key     string
	members []drivefile.Record
}

// proposeByExtension drops input folders and places every leaf under one
// folder per extension at root. Leaves whose group falls below the minimum
// size are kept at root, since their former parents are not carried forward.
func proposeByExtension(files []drivefile.Normalized, options Options) []drivefile.Record {
	timestamp := options.Now().UTC().Format(time.RFC3339)

	var groups []*extensionGroup
	groupsByKey := make(map[string]*extensionGroup)
	for _, record := range drivefile.Records(files) {
		if record.IsFolder() || record.Ref().IsPending() {
			continue
		}
		key := drivefile.Extension(record.Name)
		group, ok := groupsByKey[key]
		if !ok {
			group = &extensionGroup{key: key}
			groupsByKey[key] = group
			groups = append(groups, group)
		}
		group.members = append(group.members, record)
	}

	var proposed []drivefile.Record
	var ungrouped []drivefile.Record
	for _, group := range groups {
		if len(group.members) < options.MinGroupSize {
			for _, member := range group.members {
				member.Parents = []string{drivefile.RootID}
				ungrouped = append(ungrouped, member)
			}
			continue
		}
		folderID := drivefile.Pending(extensionFolderKey(group.key) + extensionFolderSuffix).String()
		proposed = append(proposed, newFolder(folderID, extensionFolderName(group.key), drivefile.RootID, timestamp))
		for _, member := range group.members {
			member.Parents = []string{folderID}
			proposed = append(proposed, member)
		}
	}
	return append(proposed, ungrouped...)
}

// extensionFolderKey prefixes real extensions so none of them can share a
// placeholder with the extension-less bucket, whose key is empty.
func extensionFolderKey(extension string) string {
	if extension == "" {
		return noExtensionKey
	}
	return extensionKeyPrefix + extension
}

func extensionFolderName(key string) string {
	if key == "" {
		return noExtensionFolderName
	}
	return fmt.Sprintf(extensionFolderPattern, strings.ToUpper(key))
}
