package classify

import (
	"strconv"
	"time"

	"github.com/temirov/drive-optimizer/internal/drivefile"
)

type categoryGroup struct {
	key   string
	name  string
	kinds []drivefile.Kind
}

var (
	topLevelGroups = []categoryGroup{
		{key: "documents", name: "Documents & Reports", kinds: []drivefile.Kind{drivefile.KindDocument}},
		{key: "analytics", name: "Data & Spreadsheets", kinds: []drivefile.Kind{drivefile.KindSpreadsheet}},
		{key: "presentations", name: "Presentations", kinds: []drivefile.Kind{drivefile.KindPresentation}},
		{key: "pdf_archive", name: "PDF Archive", kinds: []drivefile.Kind{drivefile.KindPDF}},
	}
	mediaGroup     = categoryGroup{key: "creative", name: "Media"}
	mediaSubgroups = []categoryGroup{
		{key: "images", name: "Images", kinds: []drivefile.Kind{drivefile.KindImage}},
		{key: "videos", name: "Videos", kinds: []drivefile.Kind{drivefile.KindVideo}},
	}
	miscGroup     = categoryGroup{key: "misc", name: "Miscellaneous", kinds: []drivefile.Kind{drivefile.KindOther}}
	existingGroup = categoryGroup{key: "existing", name: "Existing Folders"}
)

const (
	workspaceKey        = "workspace"
	workspaceNamePrefix = "Organized Workspace "
)

type plannedFolder struct {
	group    categoryGroup
	members  []int
	children []plannedFolder
}

type folderPlacement struct {
	folder   plannedFolder
	parentID string
}

func proposeByCategory(files []drivefile.Normalized, options Options) []drivefile.Record {
	now := options.Now()
	year := now.Year()
	timestamp := now.UTC().Format(time.RFC3339)

	proposed := drivefile.Records(files)
	membersByKind := make(map[drivefile.Kind][]int)
	var rootFolders []int
	for position, record := range files {
		if record.IsFolder() {
			if record.CurrentParent == drivefile.RootID {
				rootFolders = append(rootFolders, position)
			}
			continue
		}
		kind := record.Kind()
		membersByKind[kind] = append(membersByKind[kind], position)
	}

	eligible := func(group categoryGroup) []int {
		var members []int
		for _, kind := range group.kinds {
			members = append(members, membersByKind[kind]...)
		}
		if len(members) < options.MinGroupSize {
			return nil
		}
		return members
	}

	var topLevel []plannedFolder
	for _, group := range topLevelGroups {
		if members := eligible(group); members != nil {
			topLevel = append(topLevel, plannedFolder{group: group, members: members})
		}
	}
	media := plannedFolder{group: mediaGroup}
	for _, subgroup := range mediaSubgroups {
		if members := eligible(subgroup); members != nil {
			media.children = append(media.children, plannedFolder{group: subgroup, members: members})
		}
	}
	if len(media.children) > 0 {
		topLevel = append(topLevel, media)
	}
	if members := eligible(miscGroup); members != nil {
		topLevel = append(topLevel, plannedFolder{group: miscGroup, members: members})
	}
	if options.RelocateRootFolders && len(rootFolders) > 0 {
		topLevel = append(topLevel, plannedFolder{group: existingGroup, members: rootFolders})
	}
	if len(topLevel) == 0 {
		return proposed
	}

	topParent := drivefile.RootID
	var created []drivefile.Record
	if len(topLevel) >= options.WorkspaceMinGroups {
		workspaceID := placeholderID(workspaceKey, year)
		created = append(created, newFolder(workspaceID, workspaceNamePrefix+strconv.Itoa(year), drivefile.RootID, timestamp))
		topParent = workspaceID
	}

	stack := make([]folderPlacement, 0, len(topLevel))
	for index := len(topLevel) - 1; index >= 0; index-- {
		stack = append(stack, folderPlacement{folder: topLevel[index], parentID: topParent})
	}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		folderID := placeholderID(current.folder.group.key, year)
		created = append(created, newFolder(folderID, current.folder.group.name, current.parentID, timestamp))
		for _, position := range current.folder.members {
			proposed[position].Parents = []string{folderID}
		}
		for index := len(current.folder.children) - 1; index >= 0; index-- {
			stack = append(stack, folderPlacement{folder: current.folder.children[index], parentID: folderID})
		}
	}
	return append(proposed, created...)
}
