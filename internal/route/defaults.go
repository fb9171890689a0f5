package route

import "github.com/hitoshi/appshell/internal/model"

// DefaultRoutes はアプリケーションに組み込まれたルート定義を返す。
func DefaultRoutes() []model.RouteDescriptor {
	return []model.RouteDescriptor{
		{ID: "storefronts", Label: "Storefronts", Icon: "store", ContentLocator: "views/storefronts.html"},
		{ID: "audiences", Label: "Audiences", Icon: "people", ContentLocator: "views/audiences.html"},
		{ID: "dashboard", Label: "Dashboard", Icon: "dashboard", ContentLocator: "views/dashboard.html"},
		{ID: "analytics", Label: "Analytics", Icon: "analytics", ContentLocator: "views/analytics.md"},
		{ID: "projects", Label: "Projects", Icon: "folder", ContentLocator: "views/projects.html"},
		{ID: "team", Label: "Team", Icon: "group", ContentLocator: "views/team.html"},
		{ID: "settings", Label: "Settings", Icon: "settings", ContentLocator: "views/settings.html"},
	}
}

// DefaultTable は組み込みルート定義から生成したTableを返す。
func DefaultTable() *Table {
	return MustNewTable(DefaultRoutes())
}
