package ccpd

// Provinces maps the first plate index to its province character.
var Provinces = [...]string{
	"皖", "沪", "津", "渝", "冀", "晋", "蒙", "辽", "吉", "黑", "苏", "浙",
	"京", "闽", "赣", "鲁", "豫", "鄂", "湘", "粤", "桂", "琼", "川", "贵",
	"云", "藏", "陕", "甘", "青", "宁", "新", "警", "学", "O",
}

// Alphabets maps the second plate index to the city letter. I and O are not
// used on plates; the trailing "O" marks an unknown character.
var Alphabets = [...]string{
	"A", "B", "C", "D", "E", "F", "G", "H", "J", "K", "L", "M", "N",
	"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z", "O",
}

// Ads maps the remaining five plate indices to letters or digits.
var Ads = [...]string{
	"A", "B", "C", "D", "E", "F", "G", "H", "J", "K", "L", "M", "N",
	"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "O",
}

// lookup returns table[i], or false when i is out of range.
func lookup(table []string, i int) (string, bool) {
	if i < 0 || i >= len(table) {
		return "", false
	}
	return table[i], true
}
