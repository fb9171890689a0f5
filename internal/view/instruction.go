package view

// Instruction はルーターが生成する描画指示。
// 純粋な状態遷移の出力として生成し、Applyで実際のDocumentに反映する。
type Instruction interface {
	isInstruction()
}

// SetActiveNavInstruction はナビゲーションのアクティブ項目を設定する。
type SetActiveNavInstruction struct {
	ID string
}

// SetTitleInstruction はページタイトルを設定する。
type SetTitleInstruction struct {
	Title string
}

// ShowPanelInstruction はコンテンツ領域をパネルで置き換える。
type ShowPanelInstruction struct {
	HTML  string
	State ContentState
}

// LoadContentInstruction はロケーターのコンテンツ読み込みを要求する。
// Applyでは反映されず、呼び出し元がローダーへ委譲する。
type LoadContentInstruction struct {
	Locator string
}

func (SetActiveNavInstruction) isInstruction() {}
func (SetTitleInstruction) isInstruction()     {}
func (ShowPanelInstruction) isInstruction()    {}
func (LoadContentInstruction) isInstruction()  {}

// Apply は同期的な描画指示をDocumentに順に反映し、
// 非同期処理が必要な読み込み指示を返す。
func (d *Document) Apply(instructions []Instruction) []LoadContentInstruction {
	var loads []LoadContentInstruction
	for _, ins := range instructions {
		switch v := ins.(type) {
		case SetActiveNavInstruction:
			d.SetActiveNav(v.ID)
		case SetTitleInstruction:
			d.SetTitle(v.Title)
		case ShowPanelInstruction:
			d.SetContent(v.HTML, v.State)
		case LoadContentInstruction:
			loads = append(loads, v)
		}
	}
	return loads
}
