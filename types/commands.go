package types

// A LoadCmd is a Mach-O load command.
type LoadCmd uint32

const (
	LC_REQ_DYLD LoadCmd = 0x80000000

	LC_SEGMENT        LoadCmd = 0x1  // segment of this file to be mapped
	LC_SYMTAB         LoadCmd = 0x2  // link-edit stab symbol table info
	LC_THREAD         LoadCmd = 0x4  // thread
	LC_UNIXTHREAD     LoadCmd = 0x5  // thread+stack
	LC_DYSYMTAB       LoadCmd = 0xb  // dynamic link-edit symbol table info
	LC_LOAD_DYLIB     LoadCmd = 0xc  // load dylib command
	LC_ID_DYLIB       LoadCmd = 0xd  // id dylib command
	LC_LOAD_DYLINKER  LoadCmd = 0xe  // load a dynamic linker
	LC_ID_DYLINKER    LoadCmd = 0xf  // id dylinker command
	LC_PREBOUND_DYLIB LoadCmd = 0x10 // modules prebound for a dynamically linked shared library
	LC_SUB_FRAMEWORK  LoadCmd = 0x12 // sub framework
	LC_SUB_UMBRELLA   LoadCmd = 0x13 // sub umbrella
	LC_SUB_CLIENT     LoadCmd = 0x14 // sub client
	LC_SUB_LIBRARY    LoadCmd = 0x15 // sub library
	LC_TWOLEVEL_HINTS LoadCmd = 0x16 // two-level namespace lookup hints
	LC_PREBIND_CKSUM  LoadCmd = 0x17 // prebind checksum

	LC_LOAD_WEAK_DYLIB LoadCmd = (0x18 | LC_REQ_DYLD)
	LC_SEGMENT_64      LoadCmd = 0x19 // 64-bit segment of this file to be mapped
	LC_UUID            LoadCmd = 0x1b // the uuid
	LC_RPATH           LoadCmd = (0x1c | LC_REQ_DYLD)
	LC_CODE_SIGNATURE  LoadCmd = 0x1d
	LC_REEXPORT_DYLIB  LoadCmd = (0x1f | LC_REQ_DYLD) // load and re-export dylib

	LC_DYLD_INFO            LoadCmd = 0x22
	LC_DYLD_INFO_ONLY       LoadCmd = (0x22 | LC_REQ_DYLD)
	LC_LOAD_UPWARD_DYLIB    LoadCmd = (0x23 | LC_REQ_DYLD)
	LC_VERSION_MIN_MACOSX   LoadCmd = 0x24 // build for macOS min OS version
	LC_VERSION_MIN_IPHONEOS LoadCmd = 0x25 // build for iOS min OS version
	LC_FUNCTION_STARTS      LoadCmd = 0x26
	LC_MAIN                 LoadCmd = (0x28 | LC_REQ_DYLD)
	LC_DATA_IN_CODE         LoadCmd = 0x29
	LC_SOURCE_VERSION       LoadCmd = 0x2A

	LC_VERSION_MIN_TVOS     LoadCmd = 0x2F // build for tvOS min OS version
	LC_VERSION_MIN_WATCHOS  LoadCmd = 0x30 // build for watchOS min OS version
	LC_NOTE                 LoadCmd = 0x31
	LC_BUILD_VERSION        LoadCmd = 0x32 // build for platform min OS version
	LC_DYLD_EXPORTS_TRIE    LoadCmd = (0x33 | LC_REQ_DYLD)
	LC_DYLD_CHAINED_FIXUPS  LoadCmd = (0x34 | LC_REQ_DYLD)
	LC_FILESET_ENTRY        LoadCmd = (0x35 | LC_REQ_DYLD)
)

var loadCmdStrings = []IntName{
	{uint32(LC_SEGMENT), "LC_SEGMENT"},
	{uint32(LC_SYMTAB), "LC_SYMTAB"},
	{uint32(LC_THREAD), "LC_THREAD"},
	{uint32(LC_UNIXTHREAD), "LC_UNIXTHREAD"},
	{uint32(LC_DYSYMTAB), "LC_DYSYMTAB"},
	{uint32(LC_LOAD_DYLIB), "LC_LOAD_DYLIB"},
	{uint32(LC_ID_DYLIB), "LC_ID_DYLIB"},
	{uint32(LC_LOAD_DYLINKER), "LC_LOAD_DYLINKER"},
	{uint32(LC_ID_DYLINKER), "LC_ID_DYLINKER"},
	{uint32(LC_SUB_FRAMEWORK), "LC_SUB_FRAMEWORK"},
	{uint32(LC_SUB_CLIENT), "LC_SUB_CLIENT"},
	{uint32(LC_LOAD_WEAK_DYLIB), "LC_LOAD_WEAK_DYLIB"},
	{uint32(LC_SEGMENT_64), "LC_SEGMENT_64"},
	{uint32(LC_UUID), "LC_UUID"},
	{uint32(LC_CODE_SIGNATURE), "LC_CODE_SIGNATURE"},
	{uint32(LC_REEXPORT_DYLIB), "LC_REEXPORT_DYLIB"},
	{uint32(LC_VERSION_MIN_MACOSX), "LC_VERSION_MIN_MACOSX"},
	{uint32(LC_VERSION_MIN_IPHONEOS), "LC_VERSION_MIN_IPHONEOS"},
	{uint32(LC_MAIN), "LC_MAIN"},
	{uint32(LC_SOURCE_VERSION), "LC_SOURCE_VERSION"},
	{uint32(LC_VERSION_MIN_TVOS), "LC_VERSION_MIN_TVOS"},
	{uint32(LC_VERSION_MIN_WATCHOS), "LC_VERSION_MIN_WATCHOS"},
	{uint32(LC_BUILD_VERSION), "LC_BUILD_VERSION"},
}

func (c LoadCmd) String() string   { return StringName(uint32(c), loadCmdStrings, false) }
func (c LoadCmd) GoString() string { return StringName(uint32(c), loadCmdStrings, true) }

// A SymtabCmd is a Mach-O symbol table command: the one load command shape
// the walker decodes into a typed struct rather than reading fields
// straight out of the raw command bytes, since it has to survive past the
// end of the command loop to drive the subsequent symbol-table walk.
type SymtabCmd struct {
	LoadCmd // LC_SYMTAB
	Len     uint32
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}
