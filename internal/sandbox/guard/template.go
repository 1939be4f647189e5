package guard

// moduleSource is the sitecustomize template. Originals are captured in
// closures before rebinding, so submitted code cannot restore them by simple
// reassignment. The sandbox root and network markers are read from the
// environment at interpreter startup, which keeps the generated module
// session-independent.
//
// Ordering matters: every import happens at the top and the dynamic-code
// primitives are rebound last. Stdlib module bodies (subprocess via
// selectors, among others) call the builtin exec during import; rebinding it
// any earlier aborts the module load and leaves the remaining guards
// uninstalled.
const moduleSource = `"""Sandbox startup guard. Generated; do not edit.

Auto-loaded from the interpreter search path before any submitted code runs.
"""
import builtins
import importlib
import os
import sys
{{- if .ProcessSpawn}}
import subprocess
{{- end}}
{{- if .Network}}
import socket as _socket
{{- end}}
{{- if .FileAccess}}
import shutil
{{- end}}

_ROOT = os.environ.get("AIBUGBENCH_SANDBOX_ROOT", "")
if _ROOT:
    _ROOT = os.path.realpath(_ROOT)
_ALLOW_NETWORK = os.environ.get("AIBUGBENCH_ALLOW_NETWORK", "") == "1"


class SandboxGuardError(RuntimeError):
    """Raised when submitted code attempts a blocked operation."""


def _deny(marker, detail):
    def _blocked(*_args, **_kwargs):
        raise SandboxGuardError("%s: %s" % (marker, detail))
    return _blocked


def _inside_root(target):
    if not _ROOT:
        return False
    try:
        path = os.fspath(target)
    except TypeError:
        return True
    if isinstance(path, bytes):
        path = path.decode(sys.getfilesystemencoding(), "replace")
    real = os.path.realpath(os.path.join(os.getcwd(), path))
    return real == _ROOT or real.startswith(_ROOT + os.sep)


def _check_path(marker, target):
    if not _inside_root(target):
        raise SandboxGuardError("%s: path outside sandbox root: %r" % (marker, target))
{{- if .GuardRemoval}}


importlib.reload = _deny("{{.MGuardRemoval}}", "module reload is blocked")
if hasattr(importlib, "invalidate_caches"):
    importlib.invalidate_caches = _deny("{{.MGuardRemoval}}", "import cache invalidation is blocked")
{{- end}}
{{- if .ProcessSpawn}}


_spawn_denied = _deny("{{.MProcessSpawn}}", "process spawning is blocked")
subprocess.Popen = _spawn_denied
subprocess.run = _spawn_denied
subprocess.call = _spawn_denied
subprocess.check_call = _spawn_denied
subprocess.check_output = _spawn_denied
os.system = _spawn_denied
os.popen = _spawn_denied
for _name in (
    "execl", "execle", "execlp", "execlpe", "execv", "execve", "execvp",
    "execvpe", "fork", "forkpty", "posix_spawn", "posix_spawnp", "spawnl",
    "spawnle", "spawnlp", "spawnlpe", "spawnv", "spawnve", "spawnvp",
    "spawnvpe", "startfile",
):
    if hasattr(os, _name):
        setattr(os, _name, _spawn_denied)
{{- end}}
{{- if .Network}}


if not _ALLOW_NETWORK:
    _net_denied = _deny("{{.MNetwork}}", "network access is blocked")
    _socket.socket = _net_denied
    _socket.create_connection = _net_denied
    _socket.socketpair = _net_denied
    if hasattr(_socket, "create_server"):
        _socket.create_server = _net_denied
{{- end}}
{{- if .DeniedModules}}


_DENIED_MODULES = {
{{- range .DeniedModules}}
    "{{.Name}}": "{{.Marker}}",
{{- end}}
}


class _DenyImport:
    def find_spec(self, name, path=None, target=None):
        top = name.partition(".")[0]
        marker = _DENIED_MODULES.get(top)
        if marker is not None:
            raise SandboxGuardError(
                "%s: import of blocked module %r" % (marker, top))
        return None


sys.meta_path.insert(0, _DenyImport())
{{- end}}
{{- if .FileAccess}}


_orig_open = builtins.open


def _guarded_open(file, *args, **kwargs):
    if not isinstance(file, int):
        _check_path("{{.MFileAccess}}", file)
    return _orig_open(file, *args, **kwargs)


builtins.open = _guarded_open


def _guard_paths(original, arity):
    def _wrapped(*args, **kwargs):
        for target in args[:arity]:
            if not isinstance(target, int):
                _check_path("{{.MFileAccess}}", target)
        return original(*args, **kwargs)
    return _wrapped


os.remove = _guard_paths(os.remove, 1)
os.unlink = _guard_paths(os.unlink, 1)
os.rmdir = _guard_paths(os.rmdir, 1)
os.rename = _guard_paths(os.rename, 2)
os.replace = _guard_paths(os.replace, 2)
os.mkdir = _guard_paths(os.mkdir, 1)
os.makedirs = _guard_paths(os.makedirs, 1)
shutil.rmtree = _guard_paths(shutil.rmtree, 1)
shutil.copy = _guard_paths(shutil.copy, 2)
shutil.copy2 = _guard_paths(shutil.copy2, 2)
shutil.copyfile = _guard_paths(shutil.copyfile, 2)
shutil.copytree = _guard_paths(shutil.copytree, 2)
shutil.move = _guard_paths(shutil.move, 2)
{{- end}}
{{- if .DynamicCode}}


builtins.eval = _deny("{{.MDynamicCode}}", "dynamic code evaluation is blocked")
builtins.exec = _deny("{{.MDynamicCode}}", "dynamic code execution is blocked")
builtins.compile = _deny("{{.MDynamicCode}}", "dynamic code compilation is blocked")
{{- end}}
`
